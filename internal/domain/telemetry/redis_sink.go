package telemetry

import (
	"context"

	"github.com/redis/go-redis/v9"

	dbredis "speech-cmd-recognizer/internal/db/redis"
)

// RedisConfig 遥测数据存放在列表 {prefix}:{kind}，只保留最近MaxLen条
type RedisConfig struct {
	Prefix string `mapstructure:"prefix" json:"prefix"`
	MaxLen int64  `mapstructure:"max_len" json:"max_len"`
}

// RedisSink RPUSH到列表并裁剪长度，同时PUBLISH到同名频道
type RedisSink struct {
	client *redis.Client
	cfg    RedisConfig
}

func NewRedisSink(client *redis.Client, cfg RedisConfig) *RedisSink {
	return &RedisSink{client: client, cfg: cfg}
}

// Key 数据类型对应的列表键
func (s *RedisSink) Key(kind string) string {
	return dbredis.GetKeyWithPrefix(s.cfg.Prefix, kind)
}

func (s *RedisSink) Publish(ctx context.Context, kind string, payload []byte) error {
	key := s.Key(kind)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		if s.cfg.MaxLen > 0 {
			pipe.LTrim(ctx, key, -s.cfg.MaxLen, -1)
		}
		pipe.Publish(ctx, key, payload)
		return nil
	})
	return err
}

// Close 客户端由db/redis统一管理，这里不关闭
func (s *RedisSink) Close() error {
	return nil
}
