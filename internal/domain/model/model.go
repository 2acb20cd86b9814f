// Package model 描述固定拓扑的全连接分类网络：权重、偏置、批归一化参数和标签表。
// Model 加载后只读，可以被多个推理引擎共享。
package model

import (
	"errors"
	"fmt"

	"speech-cmd-recognizer/constants"
)

const (
	DefaultEpsilon             = 1e-3
	DefaultConfidenceThreshold = 0.6
)

// DefaultLabels 固件模型的类别顺序
var DefaultLabels = []string{constants.LabelAdd, constants.LabelNone, constants.LabelSub}

// Dense 全连接层，Weights按行主序存储 In×Out 矩阵，输出 = x·W + b
type Dense struct {
	In      int       `json:"in"`
	Out     int       `json:"out"`
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
}

// BatchNorm 推理模式的批归一化参数
type BatchNorm struct {
	Gamma          []float64 `json:"gamma"`
	Beta           []float64 `json:"beta"`
	MovingMean     []float64 `json:"moving_mean"`
	MovingVariance []float64 `json:"moving_variance"`
	Epsilon        float64   `json:"epsilon,omitempty"`
}

// Hidden 隐藏层：Dense -> ReLU -> BatchNorm
type Hidden struct {
	Dense     Dense     `json:"dense"`
	BatchNorm BatchNorm `json:"batch_norm"`
}

// Model 模型描述
type Model struct {
	Name        string   `json:"name"`
	InputHeight int      `json:"input_height"`
	InputWidth  int      `json:"input_width"`
	Labels      []string `json:"labels"`
	Hidden      []Hidden `json:"hidden"`
	Output      Dense    `json:"output"`
	// ConfidenceThreshold softmax最大概率低于该值视为识别失败
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
}

// InputSize 展平后的输入长度
func (m *Model) InputSize() int {
	return m.InputHeight * m.InputWidth
}

// NumClasses 类别数
func (m *Model) NumClasses() int {
	return m.Output.Out
}

// Threshold 置信度门限，未设置时为默认值
func (m *Model) Threshold() float64 {
	if m.ConfidenceThreshold <= 0 {
		return DefaultConfidenceThreshold
	}
	return m.ConfidenceThreshold
}

// Label 类别索引对应的标签，越界返回unknown
func (m *Model) Label(index int) string {
	if index < 0 || index >= len(m.Labels) {
		return constants.LabelUnknown
	}
	return m.Labels[index]
}

// Eps 批归一化的epsilon，未设置时为默认值
func (b *BatchNorm) Eps() float64 {
	if b.Epsilon <= 0 {
		return DefaultEpsilon
	}
	return b.Epsilon
}

// Validate 检查各层形状是否首尾相接、参数长度是否匹配
func (m *Model) Validate() error {
	if m.InputHeight <= 0 || m.InputWidth <= 0 {
		return fmt.Errorf("invalid input shape %dx%d", m.InputHeight, m.InputWidth)
	}
	var errs []error
	in := m.InputSize()
	for i := range m.Hidden {
		h := &m.Hidden[i]
		if err := h.Dense.validate(in); err != nil {
			errs = append(errs, fmt.Errorf("hidden[%d]: %w", i, err))
		}
		if err := h.BatchNorm.validate(h.Dense.Out); err != nil {
			errs = append(errs, fmt.Errorf("hidden[%d] batch norm: %w", i, err))
		}
		in = h.Dense.Out
	}
	if err := m.Output.validate(in); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if len(m.Labels) != m.Output.Out {
		errs = append(errs, fmt.Errorf("label count %d != output units %d", len(m.Labels), m.Output.Out))
	}
	if m.ConfidenceThreshold < 0 || m.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence threshold %.3f out of [0,1]", m.ConfidenceThreshold))
	}
	return errors.Join(errs...)
}

func (d *Dense) validate(in int) error {
	if d.In != in {
		return fmt.Errorf("input size %d, previous layer gives %d", d.In, in)
	}
	if d.Out <= 0 {
		return fmt.Errorf("invalid output size %d", d.Out)
	}
	if len(d.Weights) != d.In*d.Out {
		return fmt.Errorf("weights length %d, want %d", len(d.Weights), d.In*d.Out)
	}
	if len(d.Bias) != d.Out {
		return fmt.Errorf("bias length %d, want %d", len(d.Bias), d.Out)
	}
	return nil
}

func (b *BatchNorm) validate(size int) error {
	for name, v := range map[string][]float64{
		"gamma":           b.Gamma,
		"beta":            b.Beta,
		"moving_mean":     b.MovingMean,
		"moving_variance": b.MovingVariance,
	} {
		if len(v) != size {
			return fmt.Errorf("%s length %d, want %d", name, len(v), size)
		}
	}
	for i, v := range b.MovingVariance {
		if v+b.Eps() <= 0 {
			return fmt.Errorf("moving_variance[%d]=%f makes the normalizer non-positive", i, v)
		}
	}
	return nil
}

// Blank 创建形状正确的空白模型：权重为0，批归一化为恒等变换。
// 用于生成模型文件模板和测试。
func Blank(name string, height, width int, hidden []int, labels []string) *Model {
	m := &Model{
		Name:        name,
		InputHeight: height,
		InputWidth:  width,
		Labels:      append([]string(nil), labels...),
	}
	in := height * width
	for _, out := range hidden {
		bn := BatchNorm{
			Gamma:          filled(out, 1),
			Beta:           make([]float64, out),
			MovingMean:     make([]float64, out),
			MovingVariance: filled(out, 1),
			Epsilon:        DefaultEpsilon,
		}
		m.Hidden = append(m.Hidden, Hidden{Dense: newDense(in, out), BatchNorm: bn})
		in = out
	}
	m.Output = newDense(in, len(labels))
	return m
}

func newDense(in, out int) Dense {
	return Dense{In: in, Out: out, Weights: make([]float64, in*out), Bias: make([]float64, out)}
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}
