// Package asr 把特征流水线、端点检测和推理引擎串成一次识别周期。
package asr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"speech-cmd-recognizer/internal/domain/asr/feature"
	"speech-cmd-recognizer/internal/domain/model"
	"speech-cmd-recognizer/internal/domain/nn"
	"speech-cmd-recognizer/internal/domain/vad"
	"speech-cmd-recognizer/internal/domain/vad/inter"
	log "speech-cmd-recognizer/logger"
)

// Config 识别器配置
type Config struct {
	Feature     feature.Config         `mapstructure:"feature" json:"feature"`
	VadProvider string                 `mapstructure:"vad_provider" json:"vad_provider"`
	Vad         map[string]interface{} `mapstructure:"vad" json:"vad"`
}

// Result 一次识别的结果。Success为false时Index/Label/Confidence是最佳猜测。
type Result struct {
	ID            string          `json:"id"`
	Success       bool            `json:"success"`
	Index         int             `json:"index"`
	Label         string          `json:"label"`
	Confidence    float64         `json:"confidence"`
	Probabilities []float64       `json:"probabilities"`
	Endpoints     inter.Endpoints `json:"endpoints"`
	Elapsed       time.Duration   `json:"elapsed"`
}

// Capture 训练/导出模式下一次周期的全部中间数据
type Capture struct {
	ID        string
	Raw       []uint16
	Config    feature.Config
	Window    []float64
	Features  *feature.Features
	Endpoints inter.Endpoints
}

// Recognizer 识别周期的编排器，内部持有可复用的缓冲区，调用被串行化
type Recognizer struct {
	mu        sync.Mutex
	extractor *feature.Extractor
	detector  inter.EndpointDetector
	engine    *nn.Engine
}

// NewRecognizer 用已经构建好的组件创建识别器，engine可以为nil（只做特征导出）
func NewRecognizer(extractor *feature.Extractor, detector inter.EndpointDetector, engine *nn.Engine) (*Recognizer, error) {
	if extractor == nil || detector == nil {
		return nil, errors.New("extractor and detector are required")
	}
	return &Recognizer{extractor: extractor, detector: detector, engine: engine}, nil
}

// New 按配置创建识别器。m为nil时只能调用ExtractFeatures。
func New(cfg Config, m *model.Model) (*Recognizer, error) {
	extractor, err := feature.NewExtractor(cfg.Feature)
	if err != nil {
		return nil, err
	}
	detector, err := vad.AcquireDetector(cfg.VadProvider, cfg.Vad)
	if err != nil {
		return nil, err
	}
	var engine *nn.Engine
	if m != nil {
		if engine, err = nn.NewEngine(m); err != nil {
			vad.ReleaseDetector(detector)
			return nil, err
		}
	}
	return NewRecognizer(extractor, detector, engine)
}

// Close 释放端点检测器
func (r *Recognizer) Close() error {
	return vad.ReleaseDetector(r.detector)
}

// FeatureConfig 特征流水线参数
func (r *Recognizer) FeatureConfig() feature.Config {
	return r.extractor.Config()
}

// ExtractFeatures 执行预处理、端点检测、MFCC和特征融合，不做推理
func (r *Recognizer) ExtractFeatures(ctx context.Context, raw []uint16) (*Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.extract(ctx, raw)
}

func (r *Recognizer) extract(ctx context.Context, raw []uint16) (*Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	feats, err := r.extractor.Run(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("feature extraction: %w", err)
	}
	if err := r.detector.Reset(); err != nil {
		return nil, err
	}
	endpoints, err := r.detector.Detect(feats.Energy, feats.ZCR)
	if err != nil {
		return nil, fmt.Errorf("endpoint detection: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Capture{
		ID:        uuid.New().String(),
		Raw:       append([]uint16(nil), raw...),
		Config:    r.extractor.Config(),
		Window:    r.extractor.Window(),
		Features:  feats,
		Endpoints: endpoints,
	}, nil
}

// Recognize 完整识别一个缓冲区
func (r *Recognizer) Recognize(ctx context.Context, raw []uint16) (Result, error) {
	if r.engine == nil {
		return Result{}, errors.New("recognizer has no model")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	begin := time.Now()
	capture, err := r.extract(ctx, raw)
	if err != nil {
		return Result{}, err
	}
	m := r.engine.Model()
	input := Reshape(capture.Features.Combined, m.InputHeight, m.InputWidth)
	pred, err := r.engine.Infer(input)
	if err != nil {
		return Result{}, fmt.Errorf("inference: %w", err)
	}

	result := Result{
		ID:            capture.ID,
		Success:       pred.OK,
		Index:         pred.Index,
		Label:         m.Label(pred.Index),
		Confidence:    pred.Confidence,
		Probabilities: pred.Probabilities,
		Endpoints:     capture.Endpoints,
		Elapsed:       time.Since(begin),
	}
	log.Debugf("识别完成 id=%s label=%s confidence=%.4f success=%v speech=[%d,%d] found=%v",
		result.ID, result.Label, result.Confidence, result.Success,
		capture.Endpoints.Start, capture.Endpoints.End, capture.Endpoints.Found())
	return result, nil
}

// Reshape 把融合特征拷贝到 h×w 的矩阵，取前h帧，多出的行列补0
func Reshape(combined [][]float64, h, w int) [][]float64 {
	out := make([][]float64, h)
	for i := range out {
		out[i] = make([]float64, w)
		if i < len(combined) {
			copy(out[i], combined[i])
		}
	}
	return out
}
