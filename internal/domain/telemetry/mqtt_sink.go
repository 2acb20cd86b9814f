package telemetry

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	log "speech-cmd-recognizer/logger"
)

// MqttConfig MQTT发布配置
type MqttConfig struct {
	Broker      string        `mapstructure:"broker" json:"broker"`
	Type        string        `mapstructure:"type" json:"type"`
	Port        int           `mapstructure:"port" json:"port"`
	ClientID    string        `mapstructure:"client_id" json:"client_id"`
	Username    string        `mapstructure:"username" json:"username"`
	Password    string        `mapstructure:"password" json:"password"`
	TopicPrefix string        `mapstructure:"topic_prefix" json:"topic_prefix"`
	Qos         byte          `mapstructure:"qos" json:"qos"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
}

func (c MqttConfig) url() string {
	scheme := c.Type
	if scheme == "" {
		scheme = "tcp"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Broker, c.Port)
}

func (c MqttConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.Timeout
}

// Topic 数据类型对应的主题
func (c MqttConfig) Topic(kind string) string {
	if c.TopicPrefix == "" {
		return kind
	}
	return c.TopicPrefix + "/" + kind
}

func init() {
	mqtt.ERROR = log.NewMqttLog(logrus.ErrorLevel, "paho")
	mqtt.CRITICAL = log.NewMqttLog(logrus.ErrorLevel, "paho")
	mqtt.WARN = log.NewMqttLog(logrus.WarnLevel, "paho")
}

// MqttSink 把遥测数据发布到 {topic_prefix}/{kind}
type MqttSink struct {
	cfg    MqttConfig
	client mqtt.Client
}

// NewMqttSink 连接broker，失败时直接返回错误，由调用方决定是否重试
func NewMqttSink(cfg MqttConfig) (*MqttSink, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "recognizer-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.url())
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetConnectTimeout(cfg.timeout())
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Errorf("MQTT连接丢失: %v", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Infof("MQTT已连接: %s", cfg.url())
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.timeout()) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect mqtt %s: timeout", cfg.url())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", cfg.url(), err)
	}
	return &MqttSink{cfg: cfg, client: client}, nil
}

func (s *MqttSink) Publish(ctx context.Context, kind string, payload []byte) error {
	token := s.client.Publish(s.cfg.Topic(kind), s.cfg.Qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.timeout()):
		return fmt.Errorf("publish %s: timeout", s.cfg.Topic(kind))
	}
}

func (s *MqttSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
