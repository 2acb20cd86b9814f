package energy_vad

import (
	"fmt"

	"github.com/spf13/cast"
)

const (
	DefaultEnergyFactor    = 1.5
	DefaultEnergyFloor     = 0.01
	DefaultZcrThreshold    = 0.2
	DefaultMinSpeechFrames = 5
)

// Config 自适应能量/过零率端点检测参数
type Config struct {
	// EnergyFactor 能量阈值 = max(平均能量*EnergyFactor, EnergyFloor)
	EnergyFactor    float64 `mapstructure:"energy_factor" json:"energy_factor"`
	EnergyFloor     float64 `mapstructure:"energy_floor" json:"energy_floor"`
	ZcrThreshold    float64 `mapstructure:"zcr_threshold" json:"zcr_threshold"`
	MinSpeechFrames int     `mapstructure:"min_speech_frames" json:"min_speech_frames"`
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		EnergyFactor:    DefaultEnergyFactor,
		EnergyFloor:     DefaultEnergyFloor,
		ZcrThreshold:    DefaultZcrThreshold,
		MinSpeechFrames: DefaultMinSpeechFrames,
	}
}

// NewFromMap 从配置map创建检测器，缺省的键使用默认值
func NewFromMap(config map[string]interface{}) (*EnergyVAD, error) {
	cfg, err := getConfigFromMap(config)
	if err != nil {
		return nil, err
	}
	return NewEnergyVAD(cfg)
}

func getConfigFromMap(config map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	floats := map[string]*float64{
		"energy_factor": &cfg.EnergyFactor,
		"energy_floor":  &cfg.EnergyFloor,
		"zcr_threshold": &cfg.ZcrThreshold,
	}
	for key, dst := range floats {
		val, ok := config[key]
		if !ok || val == nil {
			continue
		}
		f, err := cast.ToFloat64E(val)
		if err != nil {
			return cfg, fmt.Errorf("vad config %s: %w", key, err)
		}
		*dst = f
	}
	if val, ok := config["min_speech_frames"]; ok && val != nil {
		n, err := cast.ToIntE(val)
		if err != nil {
			return cfg, fmt.Errorf("vad config min_speech_frames: %w", err)
		}
		cfg.MinSpeechFrames = n
	}
	return cfg, nil
}
