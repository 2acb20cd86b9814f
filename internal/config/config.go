// Package config 定义识别程序的完整配置，由viper读取并解析到类型化结构体
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/viper"

	"speech-cmd-recognizer/constants"
	dbredis "speech-cmd-recognizer/internal/db/redis"
	"speech-cmd-recognizer/internal/domain/acquisition"
	"speech-cmd-recognizer/internal/domain/asr"
	"speech-cmd-recognizer/internal/domain/asr/feature"
	"speech-cmd-recognizer/internal/domain/telemetry"
	"speech-cmd-recognizer/logger"
)

// Config 识别程序配置
type Config struct {
	// Mode recognize 或 train
	Mode      string             `mapstructure:"mode" json:"mode"`
	Log       logger.Options     `mapstructure:"log" json:"log"`
	Asr       asr.Config         `mapstructure:"asr" json:"asr"`
	Model     ModelConfig        `mapstructure:"model" json:"model"`
	Source    acquisition.Config `mapstructure:"source" json:"source"`
	Telemetry telemetry.Config   `mapstructure:"telemetry" json:"telemetry"`
	Redis     RedisConfig        `mapstructure:"redis" json:"redis"`
	Actuator  ActuatorConfig     `mapstructure:"actuator" json:"actuator"`
}

// ModelConfig 模型描述文件，只在启动时加载一次
type ModelConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// RedisConfig Enable为true时启动阶段初始化共享客户端
type RedisConfig struct {
	Enable         bool `mapstructure:"enable" json:"enable"`
	dbredis.Config `mapstructure:",squash"`
}

// ActuatorConfig 风扇控制，识别成功的add/sub调整档位
type ActuatorConfig struct {
	Enable bool `mapstructure:"enable" json:"enable"`
}

// Default 默认配置：语音识别模式，合成音源，输出到标准输出
func Default() *Config {
	fc := feature.DefaultConfig()
	return &Config{
		Mode: constants.ModeRecognize,
		Log: logger.Options{
			Level:  "info",
			MaxAge: 7,
			Stdout: true,
		},
		Asr: asr.Config{
			Feature:     fc,
			VadProvider: constants.VadTypeEnergy,
			Vad:         map[string]interface{}{},
		},
		Source: acquisition.Config{
			Type:       constants.SourceTypeTone,
			BufferLen:  fc.BufferLen,
			SampleRate: fc.SampleRate,
			Tone: acquisition.ToneConfig{
				Frequency: 700,
				Amplitude: 800,
				From:      fc.BufferLen / 3,
				To:        2 * fc.BufferLen / 3,
				Count:     1,
			},
		},
		Telemetry: telemetry.Config{
			Sinks: []string{constants.SinkTypeWriter},
			Mqtt: telemetry.MqttConfig{
				Broker:      "127.0.0.1",
				Type:        "tcp",
				Port:        1883,
				TopicPrefix: "speech",
			},
			Redis: telemetry.RedisConfig{Prefix: "speech", MaxLen: 1000},
			Wav:   telemetry.WavConfig{Dir: "data/wav", SampleRate: fc.SampleRate},
		},
		Redis:    RedisConfig{Config: *dbredis.DefaultConfig()},
		Actuator: ActuatorConfig{Enable: true},
	}
}

// SetDefaults 注册顶层默认值，使viper.Get*在配置文件缺项时也有值
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("mode", d.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.stdout", d.Log.Stdout)
	v.SetDefault("asr.vad_provider", d.Asr.VadProvider)
	v.SetDefault("source.type", d.Source.Type)
	v.SetDefault("telemetry.sinks", d.Telemetry.Sinks)
}

// Load 在默认配置之上合并viper中的配置并校验
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// 采集长度必须与特征流水线一致
	if cfg.Source.BufferLen == 0 {
		cfg.Source.BufferLen = cfg.Asr.Feature.BufferLen
	}
	if cfg.Source.SampleRate == 0 {
		cfg.Source.SampleRate = cfg.Asr.Feature.SampleRate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查跨模块的一致性
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case constants.ModeRecognize:
		if c.Model.Path == "" {
			errs = append(errs, errors.New("model.path is required in recognize mode"))
		}
	case constants.ModeTrain:
	default:
		errs = append(errs, fmt.Errorf("invalid mode: %s", c.Mode))
	}
	if err := c.Asr.Feature.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Source.BufferLen > c.Asr.Feature.BufferLen {
		errs = append(errs, fmt.Errorf("source.buffer_len %d exceeds asr.feature.buffer_len %d",
			c.Source.BufferLen, c.Asr.Feature.BufferLen))
	}
	return errors.Join(errs...)
}

// LoadFile 读取配置文件，支持json和yaml
func LoadFile(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// SaveConfig 保存配置到文件
func (c *Config) SaveConfig(filename string) error {
	data, err := sonic.ConfigStd.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
