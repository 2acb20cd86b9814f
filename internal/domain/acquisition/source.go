// Package acquisition 提供固定长度的采样缓冲区来源，
// 以及一次只允许一个缓冲区在途的采集交接。
package acquisition

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-audio/wav"

	"speech-cmd-recognizer/constants"
	log "speech-cmd-recognizer/logger"
)

const (
	// AdcMidScale 12位ADC的静音电平
	AdcMidScale = 2048
	AdcMax      = 4095
)

// Source 采集一个固定长度的缓冲区，没有更多数据时返回io.EOF
type Source interface {
	Acquire(ctx context.Context) ([]uint16, error)
}

// Config 采集配置
type Config struct {
	Type       string     `mapstructure:"type" json:"type"`
	Path       string     `mapstructure:"path" json:"path"`
	Loop       bool       `mapstructure:"loop" json:"loop"`
	BufferLen  int        `mapstructure:"buffer_len" json:"buffer_len"`
	SampleRate int        `mapstructure:"sample_rate" json:"sample_rate"`
	Tone       ToneConfig `mapstructure:"tone" json:"tone"`
}

// NewSource 按类型创建采集来源
func NewSource(cfg Config) (Source, error) {
	if cfg.BufferLen <= 0 {
		return nil, fmt.Errorf("invalid buffer length: %d", cfg.BufferLen)
	}
	switch cfg.Type {
	case constants.SourceTypeWav:
		return NewWavSource(cfg.Path, cfg.BufferLen, cfg.Loop), nil
	case constants.SourceTypeDir:
		return NewDirSource(cfg.Path, cfg.BufferLen, cfg.Loop)
	case constants.SourceTypeTone:
		tone := cfg.Tone
		if tone.SampleRate == 0 {
			tone.SampleRate = cfg.SampleRate
		}
		return NewToneSource(tone, cfg.BufferLen), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
}

// ToADC 16位有符号PCM转换为12位无符号ADC量级
func ToADC(sample int) uint16 {
	v := (sample >> 4) + AdcMidScale
	if v < 0 {
		v = 0
	}
	if v > AdcMax {
		v = AdcMax
	}
	return uint16(v)
}

// ReadWav 读取单声道16位WAV并转换为bufferLen长度的ADC缓冲区，
// 不足的部分用静音电平补齐，多余的部分截断
func ReadWav(path string, bufferLen int) ([]uint16, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if dec.NumChans != 1 || dec.BitDepth != 16 {
		return nil, 0, fmt.Errorf("%s: need mono 16-bit pcm, got %d channels %d bits", path, dec.NumChans, dec.BitDepth)
	}

	buf := make([]uint16, bufferLen)
	for i := range buf {
		if i < len(pcm.Data) {
			buf[i] = ToADC(pcm.Data[i])
		} else {
			buf[i] = AdcMidScale
		}
	}
	return buf, int(dec.SampleRate), nil
}

// WavSource 从单个WAV文件采集
type WavSource struct {
	path      string
	bufferLen int
	loop      bool

	mu   sync.Mutex
	done bool
}

func NewWavSource(path string, bufferLen int, loop bool) *WavSource {
	return &WavSource{path: path, bufferLen: bufferLen, loop: loop}
}

func (s *WavSource) Acquire(ctx context.Context) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done && !s.loop {
		return nil, io.EOF
	}
	// 不循环时文件只读一次，读取失败后也视为耗尽
	s.done = true
	buf, rate, err := ReadWav(s.path, s.bufferLen)
	if err != nil {
		return nil, err
	}
	log.Debugf("采集 %s sample_rate=%d", s.path, rate)
	return buf, nil
}

// DirSource 按文件名顺序依次采集目录下的WAV文件
type DirSource struct {
	files     []string
	bufferLen int
	loop      bool

	mu   sync.Mutex
	next int
}

func NewDirSource(dir string, bufferLen int, loop bool) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no wav files in %s", dir)
	}
	sort.Strings(files)
	return &DirSource{files: files, bufferLen: bufferLen, loop: loop}, nil
}

// Files 待采集的文件列表
func (s *DirSource) Files() []string {
	return s.files
}

func (s *DirSource) Acquire(ctx context.Context) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.next >= len(s.files) {
		if !s.loop {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++
	s.mu.Unlock()

	buf, _, err := ReadWav(path, s.bufferLen)
	if err != nil {
		return nil, err
	}
	log.Debugf("采集 %s", path)
	return buf, nil
}

// ToneConfig 合成正弦音，[From,To) 之外为静音
type ToneConfig struct {
	Frequency  float64 `mapstructure:"frequency" json:"frequency"`
	Amplitude  float64 `mapstructure:"amplitude" json:"amplitude"`
	From       int     `mapstructure:"from" json:"from"`
	To         int     `mapstructure:"to" json:"to"`
	SampleRate int     `mapstructure:"sample_rate" json:"sample_rate"`
	// Count 生成的缓冲区数量，0表示不限
	Count int `mapstructure:"count" json:"count"`
}

// ToneSource 合成信号来源，用于演示和测试
type ToneSource struct {
	cfg    ToneConfig
	buffer []uint16

	mu       sync.Mutex
	acquired int
}

func NewToneSource(cfg ToneConfig, bufferLen int) *ToneSource {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 8000
	}
	buf := make([]uint16, bufferLen)
	for i := range buf {
		v := float64(AdcMidScale)
		if i >= cfg.From && i < cfg.To {
			v += cfg.Amplitude * math.Sin(2*math.Pi*cfg.Frequency*float64(i)/float64(cfg.SampleRate))
		}
		buf[i] = uint16(math.Max(0, math.Min(AdcMax, math.Round(v))))
	}
	return &ToneSource{cfg: cfg, buffer: buf}
}

func (s *ToneSource) Acquire(ctx context.Context) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Count > 0 && s.acquired >= s.cfg.Count {
		return nil, io.EOF
	}
	s.acquired++
	return append([]uint16(nil), s.buffer...), nil
}
