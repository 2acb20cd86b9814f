// Package redis 管理进程内共享的go-redis客户端，供遥测和识别结果存储使用
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	log "speech-cmd-recognizer/logger"
)

var (
	globalClient *redis.Client
	mu           sync.RWMutex
)

// Config Redis连接配置
type Config struct {
	Host         string        `mapstructure:"host" json:"host"`
	Port         int           `mapstructure:"port" json:"port"`
	Password     string        `mapstructure:"password" json:"password"`
	DB           int           `mapstructure:"db" json:"db"`
	PoolSize     int           `mapstructure:"pool_size" json:"pool_size"`
	MaxRetries   int           `mapstructure:"max_retries" json:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     4,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewClient 按配置创建客户端并Ping一次
func NewClient(ctx context.Context, config *Config) (*redis.Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr(),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", config.Addr(), err)
	}
	return client, nil
}

// Init 初始化全局客户端，重复调用会替换旧连接
func Init(ctx context.Context, config *Config) error {
	client, err := NewClient(ctx, config)
	if err != nil {
		return err
	}

	mu.Lock()
	old := globalClient
	globalClient = client
	mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	log.Log().Infof("Redis客户端初始化成功: %s", client.Options().Addr)
	return nil
}

// GetClient 获取全局客户端，未初始化时返回nil
func GetClient() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()

	if globalClient == nil {
		log.Log().Warn("Redis客户端未初始化")
	}
	return globalClient
}

// Close 关闭全局客户端
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if globalClient == nil {
		return nil
	}
	err := globalClient.Close()
	globalClient = nil
	if err != nil {
		log.Log().Errorf("关闭Redis连接失败: %v", err)
		return err
	}
	log.Log().Info("Redis连接已关闭")
	return nil
}

// GetKeyWithPrefix 获取带前缀的键名
func GetKeyWithPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", prefix, key)
}
