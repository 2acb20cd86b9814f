package feature

import (
	"errors"
	"fmt"
)

// Config 分帧与特征提取参数，默认值与8kHz一秒采集缓冲区匹配
type Config struct {
	SampleRate   int     `mapstructure:"sample_rate" json:"sample_rate"`
	BufferLen    int     `mapstructure:"buffer_len" json:"buffer_len"`
	FrameSize    int     `mapstructure:"frame_size" json:"frame_size"`
	FrameOverlap int     `mapstructure:"frame_overlap" json:"frame_overlap"`
	NFFT         int     `mapstructure:"nfft" json:"nfft"`
	NumFilters   int     `mapstructure:"num_filters" json:"num_filters"`
	NumCeps      int     `mapstructure:"num_ceps" json:"num_ceps"`
	LowFreq      float64 `mapstructure:"low_freq" json:"low_freq"`
	HighFreq     float64 `mapstructure:"high_freq" json:"high_freq"`
	PreEmphasis  float64 `mapstructure:"pre_emphasis" json:"pre_emphasis"`
	DeltaWindow  int     `mapstructure:"delta_window" json:"delta_window"`

	MfccWeight       float64 `mapstructure:"mfcc_weight" json:"mfcc_weight"`
	DeltaWeight      float64 `mapstructure:"delta_weight" json:"delta_weight"`
	DeltaDeltaWeight float64 `mapstructure:"delta_delta_weight" json:"delta_delta_weight"`

	// Workers 逐帧谱分析使用的协程数，<=1 顺序执行
	Workers int `mapstructure:"workers" json:"workers"`
}

// DefaultConfig 返回默认参数
func DefaultConfig() Config {
	return Config{
		SampleRate:       8000,
		BufferLen:        8000,
		FrameSize:        256,
		FrameOverlap:     128,
		NFFT:             512,
		NumFilters:       26,
		NumCeps:          13,
		LowFreq:          0,
		HighFreq:         4000,
		PreEmphasis:      0.95,
		DeltaWindow:      2,
		MfccWeight:       1.0,
		DeltaWeight:      0.75,
		DeltaDeltaWeight: 0.5,
		Workers:          1,
	}
}

// Validate 校验参数之间的约束
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("frame_size must be positive, got %d", c.FrameSize))
	}
	if c.FrameOverlap < 0 || c.FrameOverlap >= c.FrameSize {
		errs = append(errs, fmt.Errorf("frame_overlap must be in [0, frame_size), got %d", c.FrameOverlap))
	}
	if c.BufferLen < c.FrameSize {
		errs = append(errs, fmt.Errorf("buffer_len %d shorter than frame_size %d", c.BufferLen, c.FrameSize))
	}
	if c.NFFT < c.FrameSize || c.NFFT&(c.NFFT-1) != 0 {
		errs = append(errs, fmt.Errorf("nfft must be a power of two >= frame_size, got %d", c.NFFT))
	}
	if c.NumFilters <= 0 || c.NumCeps <= 0 || c.NumCeps > c.NumFilters {
		errs = append(errs, fmt.Errorf("need 0 < num_ceps(%d) <= num_filters(%d)", c.NumCeps, c.NumFilters))
	}
	if c.DeltaWindow <= 0 {
		errs = append(errs, fmt.Errorf("delta_window must be positive, got %d", c.DeltaWindow))
	}
	return errors.Join(errs...)
}

// Hop 相邻帧起点间隔
func (c Config) Hop() int {
	return c.FrameSize - c.FrameOverlap
}

// NumFrames 由缓冲区长度推出的帧数
func (c Config) NumFrames() int {
	return NumFrames(c.BufferLen, c.FrameSize, c.FrameOverlap)
}

// FeatureDim 融合后每帧特征维度（静态+一阶+二阶）
func (c Config) FeatureDim() int {
	return 3 * c.NumCeps
}

// NumFrames floor((bufferLen-frameSize)/(frameSize-overlap))+1，缓冲区不足一帧时为0
func NumFrames(bufferLen, frameSize, overlap int) int {
	hop := frameSize - overlap
	if frameSize <= 0 || hop <= 0 || bufferLen < frameSize {
		return 0
	}
	return (bufferLen-frameSize)/hop + 1
}
