// Package mqtt_server 内嵌的MQTT broker，供遥测消费者订阅识别结果和训练数据
package mqtt_server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync/atomic"

	mqttServer "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	log "speech-cmd-recognizer/logger"
)

// Config broker配置，对应配置文件的mqtt_server节
type Config struct {
	ListenHost  string    `mapstructure:"listen_host" json:"listen_host"`
	ListenPort  int       `mapstructure:"listen_port" json:"listen_port"`
	EnableAuth  bool      `mapstructure:"enable_auth" json:"enable_auth"`
	Username    string    `mapstructure:"username" json:"username"`
	Password    string    `mapstructure:"password" json:"password"`
	TopicPrefix string    `mapstructure:"topic_prefix" json:"topic_prefix"`
	TLS         TLSConfig `mapstructure:"tls" json:"tls"`
}

type TLSConfig struct {
	Enable bool   `mapstructure:"enable" json:"enable"`
	Port   int    `mapstructure:"port" json:"port"`
	Pem    string `mapstructure:"pem" json:"pem"`
	Key    string `mapstructure:"key" json:"key"`
}

// Broker 对mochi server的简单封装
type Broker struct {
	cfg    Config
	server *mqttServer.Server
	nextID atomic.Int32
}

// NewBroker 创建broker并添加钩子和监听器，还没有开始服务
func NewBroker(cfg Config) (*Broker, error) {
	if cfg.ListenPort == 0 {
		return nil, errors.New("mqtt_server.listen_port 配置错误，请检查配置文件")
	}
	server := mqttServer.New(&mqttServer.Options{
		InlineClient: true,
	})

	if err := server.AddHook(&AuthHook{cfg: cfg}, nil); err != nil {
		return nil, fmt.Errorf("添加 AuthHook 失败: %w", err)
	}
	if err := server.AddHook(&TelemetryHook{cfg: cfg}, nil); err != nil {
		return nil, fmt.Errorf("添加 TelemetryHook 失败: %w", err)
	}

	if cfg.TLS.Enable {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.Pem, cfg.TLS.Key)
		if err != nil {
			return nil, fmt.Errorf("加载证书失败: %w", err)
		}
		ssltcp := listeners.NewTCP(listeners.Config{
			ID:        "ssl",
			Address:   fmt.Sprintf(":%d", cfg.TLS.Port),
			TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		})
		if err := server.AddListener(ssltcp); err != nil {
			return nil, err
		}
	}

	address := fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort)
	tcp := listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		ID:      "t1",
		Address: address,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("添加 TCP 监听失败: %w", err)
	}
	log.Infof("MQTT 服务器监听 %s", address)
	return &Broker{cfg: cfg, server: server}, nil
}

// Start 启动监听，不阻塞
func (b *Broker) Start() error {
	return b.server.Serve()
}

// Subscribe 进程内订阅，handler在broker的协程中执行。可并发调用，每次订阅使用独立的ID
func (b *Broker) Subscribe(filter string, handler func(topic string, payload []byte)) error {
	id := int(b.nextID.Add(1))
	return b.server.Subscribe(filter, id, func(_ *mqttServer.Client, _ packets.Subscription, pk packets.Packet) {
		handler(pk.TopicName, pk.Payload)
	})
}

// Close 关闭所有监听和连接
func (b *Broker) Close() error {
	return b.server.Close()
}
