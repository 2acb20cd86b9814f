// Package feature 实现语音帧级特征流水线：预加重、去直流、分帧加窗、
// 能量/过零率、MFCC及其一阶二阶差分，以及融合后的特征矩阵。
//
// Extractor 持有一次识别周期内的全部中间缓冲区，每次调用都会完整重算，
// 返回的切片引用内部缓冲区，在下一次调用前有效。Extractor 不是并发安全的。
package feature

import (
	"context"
	"errors"
	"fmt"

	"speech-cmd-recognizer/internal/domain/asr/dsp"
	"speech-cmd-recognizer/internal/util/workqueue"
)

var (
	ErrBufferLength    = errors.New("sample buffer length out of range")
	ErrNotPreprocessed = errors.New("preprocess must run before mfcc extraction")
	ErrNotExtracted    = errors.New("mfcc must be extracted before combining")
)

// Basic 预处理结果
type Basic struct {
	Processed []float64
	Energy    []float64
	ZCR       []float64
	// Skipped 标记超出输入范围而未计算的帧，对应特征保持为0
	Skipped []bool
}

// Cepstra 倒谱特征，三个矩阵形状均为 [NumFrames][NumCeps]
type Cepstra struct {
	MFCC       [][]float64
	Delta      [][]float64
	DeltaDelta [][]float64
}

// spectralScratch 单个协程做谱分析所需的工作区
type spectralScratch struct {
	frame  []float64
	power  []float64
	logMel []float64
	fft    *dsp.PowerSpectrum
}

// Extractor 特征流水线上下文
type Extractor struct {
	cfg       Config
	numFrames int

	window  []float64
	melBank *dsp.MelFilterbank
	dct     *dsp.DCT
	scratch chan *spectralScratch

	processed  []float64
	frame      []float64
	energy     []float64
	zcr        []float64
	skipped    []bool
	mfcc       [][]float64
	delta      [][]float64
	deltaDelta [][]float64
	combined   [][]float64

	preprocessed bool
	extracted    bool
}

// NewExtractor 按配置预计算窗函数、梅尔滤波器和DCT表并分配缓冲区
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature config: %w", err)
	}
	melBank, err := dsp.NewMelFilterbank(cfg.NumFilters, cfg.NFFT, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq)
	if err != nil {
		return nil, err
	}
	dct, err := dsp.NewDCT(cfg.NumFilters, cfg.NumCeps)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	n := cfg.NumFrames()
	e := &Extractor{
		cfg:        cfg,
		numFrames:  n,
		window:     dsp.HammingWindow(cfg.FrameSize),
		melBank:    melBank,
		dct:        dct,
		scratch:    make(chan *spectralScratch, workers),
		processed:  make([]float64, 0, cfg.BufferLen),
		frame:      make([]float64, cfg.FrameSize),
		energy:     make([]float64, n),
		zcr:        make([]float64, n),
		skipped:    make([]bool, n),
		mfcc:       newMatrix(n, cfg.NumCeps),
		delta:      newMatrix(n, cfg.NumCeps),
		deltaDelta: newMatrix(n, cfg.NumCeps),
		combined:   newMatrix(n, cfg.FeatureDim()),
	}
	for i := 0; i < workers; i++ {
		fft, err := dsp.NewPowerSpectrum(cfg.NFFT)
		if err != nil {
			return nil, err
		}
		e.scratch <- &spectralScratch{
			frame:  make([]float64, cfg.FrameSize),
			power:  make([]float64, fft.Bins()),
			logMel: make([]float64, cfg.NumFilters),
			fft:    fft,
		}
	}
	return e, nil
}

func newMatrix(rows, cols int) [][]float64 {
	backing := make([]float64, rows*cols)
	m := make([][]float64, rows)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}

func zeroMatrix(m [][]float64) {
	for _, row := range m {
		for j := range row {
			row[j] = 0
		}
	}
}

// Config 返回提取器使用的参数
func (e *Extractor) Config() Config {
	return e.cfg
}

// NumFrames 每个周期的帧数
func (e *Extractor) NumFrames() int {
	return e.numFrames
}

// Window 汉明窗系数
func (e *Extractor) Window() []float64 {
	return e.window
}

// frameStart 第f帧在处理后缓冲区中的起点
func (e *Extractor) frameStart(f int) int {
	return f * e.cfg.Hop()
}

// frameInRange 帧的结束位置是否落在输入范围内
func (e *Extractor) frameInRange(f int) bool {
	return e.frameStart(f)+e.cfg.FrameSize <= len(e.processed)
}

// Preprocess 预加重、去直流并逐帧计算能量与过零率。
// 输入长度不得超过BufferLen；较短的输入会让尾部帧被标记为Skipped。
func (e *Extractor) Preprocess(samples []uint16) (*Basic, error) {
	if len(samples) == 0 || len(samples) > e.cfg.BufferLen {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrBufferLength, len(samples), e.cfg.BufferLen)
	}
	e.preprocessed = false
	e.extracted = false

	// 预加重使用原始的前一个采样值
	alpha := e.cfg.PreEmphasis
	e.processed = e.processed[:len(samples)]
	e.processed[0] = float64(samples[0])
	for i := 1; i < len(samples); i++ {
		e.processed[i] = float64(samples[i]) - alpha*float64(samples[i-1])
	}

	removeDC(e.processed)

	for f := 0; f < e.numFrames; f++ {
		e.energy[f] = 0
		e.zcr[f] = 0
		e.skipped[f] = false
		if !e.frameInRange(f) {
			e.skipped[f] = true
			continue
		}
		start := e.frameStart(f)
		dsp.ApplyWindow(e.frame, e.processed[start:start+e.cfg.FrameSize], e.window)
		e.energy[f] = Energy(e.frame)
		e.zcr[f] = ZeroCrossingRate(e.frame)
	}

	e.preprocessed = true
	return &Basic{
		Processed: e.processed,
		Energy:    e.energy,
		ZCR:       e.zcr,
		Skipped:   e.skipped,
	}, nil
}

// removeDC 减去整个缓冲区的算术平均值
func removeDC(buf []float64) {
	if len(buf) == 0 {
		return
	}
	var sum float64
	for _, v := range buf {
		sum += v
	}
	mean := sum / float64(len(buf))
	for i := range buf {
		buf[i] -= mean
	}
}

// Energy 帧内采样平方的均值
func Energy(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += v * v
	}
	return sum / float64(len(frame))
}

// ZeroCrossingRate 相邻采样符号相反（乘积<0）的次数除以(len-1)
func ZeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if frame[i]*frame[i-1] < 0 {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

// ExtractMFCC 对预处理后的缓冲区逐帧提取MFCC，做倒谱均值归一化，
// 再计算一阶和二阶差分。
func (e *Extractor) ExtractMFCC(ctx context.Context) (*Cepstra, error) {
	if !e.preprocessed {
		return nil, ErrNotPreprocessed
	}
	e.extracted = false
	zeroMatrix(e.mfcc)

	workers := cap(e.scratch)
	err := workqueue.ParallelizeUntil(ctx, workers, e.numFrames, func(f int) {
		if !e.frameInRange(f) {
			return
		}
		s := <-e.scratch
		defer func() { e.scratch <- s }()

		start := e.frameStart(f)
		dsp.ApplyWindow(s.frame, e.processed[start:start+e.cfg.FrameSize], e.window)
		s.power = s.fft.Compute(s.power, s.frame)
		s.logMel = e.melBank.Apply(s.logMel, s.power)
		e.dct.Transform(e.mfcc[f], s.logMel)
	})
	if err != nil {
		return nil, fmt.Errorf("mfcc extraction: %w", err)
	}

	NormalizeMean(e.mfcc)
	Delta(e.delta, e.mfcc, e.cfg.DeltaWindow)
	Delta(e.deltaDelta, e.delta, e.cfg.DeltaWindow)

	e.extracted = true
	return &Cepstra{
		MFCC:       e.mfcc,
		Delta:      e.delta,
		DeltaDelta: e.deltaDelta,
	}, nil
}

// Combine 对一阶、二阶差分做均值归一化后，按权重拼接为每帧一行的融合特征
func (e *Extractor) Combine() ([][]float64, error) {
	if !e.extracted {
		return nil, ErrNotExtracted
	}
	NormalizeMean(e.delta)
	NormalizeMean(e.deltaDelta)

	c := e.cfg.NumCeps
	for f := 0; f < e.numFrames; f++ {
		row := e.combined[f]
		for i := 0; i < c; i++ {
			row[i] = e.mfcc[f][i] * e.cfg.MfccWeight
			row[i+c] = e.delta[f][i] * e.cfg.DeltaWeight
			row[i+2*c] = e.deltaDelta[f][i] * e.cfg.DeltaDeltaWeight
		}
	}
	return e.combined, nil
}

// NormalizeMean 每一列减去该列在所有帧上的均值
func NormalizeMean(m [][]float64) {
	if len(m) == 0 {
		return
	}
	cols := len(m[0])
	n := float64(len(m))
	for j := 0; j < cols; j++ {
		var sum float64
		for _, row := range m {
			sum += row[j]
		}
		mean := sum / n
		for _, row := range m {
			row[j] -= mean
		}
	}
}

// Delta 在±window帧范围内做回归求导：
// out[f][c] = Σ n*in[f+n][c] / Σ n^2，只累加范围内的邻帧，分母随之缩小。
// 只有一帧时分母为0，输出0。
func Delta(out, in [][]float64, window int) {
	frames := len(in)
	for f := 0; f < frames; f++ {
		for c := range in[f] {
			var num, den float64
			for n := -window; n <= window; n++ {
				pos := f + n
				if pos < 0 || pos >= frames {
					continue
				}
				num += float64(n) * in[pos][c]
				den += float64(n * n)
			}
			if den == 0 {
				out[f][c] = 0
				continue
			}
			out[f][c] = num / den
		}
	}
}
