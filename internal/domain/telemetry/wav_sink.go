package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"speech-cmd-recognizer/constants"
	log "speech-cmd-recognizer/logger"
)

// WavConfig 训练样本的WAV导出目录
type WavConfig struct {
	Dir        string `mapstructure:"dir" json:"dir"`
	SampleRate int    `mapstructure:"sample_rate" json:"sample_rate"`
	// Gain 处理后采样（12位ADC量级）到16位PCM的放大倍数
	Gain float64 `mapstructure:"gain" json:"gain"`
}

// WavSink 解析cnn_data中的语音段波形并保存为单声道16位WAV，其它数据忽略
type WavSink struct {
	cfg WavConfig
}

func NewWavSink(cfg WavConfig) (*WavSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("wav sink dir is empty")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 8000
	}
	if cfg.Gain == 0 {
		cfg.Gain = 16
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &WavSink{cfg: cfg}, nil
}

func (s *WavSink) Publish(_ context.Context, kind string, payload []byte) error {
	if kind != constants.TelemetryKindCNNData {
		return nil
	}
	rec, err := ParseTrainingData(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	path := filepath.Join(s.cfg.Dir, uuid.NewString()+".wav")
	if err := WriteWav(path, rec.Samples, s.cfg.SampleRate, s.cfg.Gain); err != nil {
		return err
	}
	log.Debugf("训练样本已保存: %s frames=%d samples=%d", path, rec.ValidFrames, len(rec.Samples))
	return nil
}

func (s *WavSink) Close() error {
	return nil
}

// WriteWav 把浮点采样乘以gain后截断到int16范围写成WAV
func WriteWav(path string, samples []float64, sampleRate int, gain float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, v := range samples {
		x := math.Round(v * gain)
		buf.Data[i] = int(math.Max(math.MinInt16, math.Min(math.MaxInt16, x)))
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
