package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"speech-cmd-recognizer/constants"
	dbredis "speech-cmd-recognizer/internal/db/redis"
	log "speech-cmd-recognizer/logger"
)

// Sink 遥测数据的发布目标，kind 取 result/inspect/cnn_data
type Sink interface {
	Publish(ctx context.Context, kind string, payload []byte) error
	Close() error
}

// Config 遥测配置
type Config struct {
	// Sinks 启用的sink类型：writer/mqtt/redis/wav
	Sinks   []string     `mapstructure:"sinks" json:"sinks"`
	Inspect bool         `mapstructure:"inspect" json:"inspect"`
	Writer  WriterConfig `mapstructure:"writer" json:"writer"`
	Mqtt    MqttConfig   `mapstructure:"mqtt" json:"mqtt"`
	Redis   RedisConfig  `mapstructure:"redis" json:"redis"`
	Wav     WavConfig    `mapstructure:"wav" json:"wav"`
}

// WriterConfig Path为空时写标准输出
type WriterConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// NewSinks 按配置创建sink，多个sink时返回MultiSink
func NewSinks(ctx context.Context, cfg Config) (Sink, error) {
	var sinks []Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}
	for _, name := range cfg.Sinks {
		var (
			s   Sink
			err error
		)
		switch name {
		case constants.SinkTypeWriter:
			s, err = newWriterSinkFromConfig(cfg.Writer)
		case constants.SinkTypeMqtt:
			s, err = NewMqttSink(cfg.Mqtt)
		case constants.SinkTypeRedis:
			client := dbredis.GetClient()
			if client == nil {
				err = errors.New("redis client not initialized")
				break
			}
			s = NewRedisSink(client, cfg.Redis)
		case constants.SinkTypeWav:
			s, err = NewWavSink(cfg.Wav)
		default:
			err = fmt.Errorf("unsupported sink type: %s", name)
		}
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("create %s sink: %w", name, err)
		}
		log.Infof("遥测sink已启用: %s", name)
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

// WriterSink 把数据原样写入io.Writer（串口、文件或标准输出）
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewWriterSink 创建WriterSink，w实现io.Closer时Close会关闭它
func NewWriterSink(w io.Writer) *WriterSink {
	s := &WriterSink{w: w}
	if c, ok := w.(io.Closer); ok && w != os.Stdout && w != os.Stderr {
		s.closer = c
	}
	return s
}

func newWriterSinkFromConfig(cfg WriterConfig) (*WriterSink, error) {
	if cfg.Path == "" {
		return NewWriterSink(os.Stdout), nil
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewWriterSink(f), nil
}

// Publish 写入payload，不以换行结尾时补CRLF
func (s *WriterSink) Publish(_ context.Context, _ string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(payload); err != nil {
		return err
	}
	if len(payload) == 0 || payload[len(payload)-1] != '\n' {
		_, err := io.WriteString(s.w, eol)
		return err
	}
	return nil
}

func (s *WriterSink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// MultiSink 依次发布到所有sink，单个失败不影响其余
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(ctx context.Context, kind string, payload []byte) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, kind, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
