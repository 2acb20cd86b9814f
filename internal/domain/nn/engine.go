// Package nn 在固定的模型描述上做前向推理：
// 展平 -> [Dense -> ReLU -> BatchNorm]* -> Dense -> Softmax -> 置信度门限。
package nn

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"speech-cmd-recognizer/internal/domain/model"
)

var ErrInputShape = errors.New("input shape does not match model")

// Prediction 一次推理的结果。OK为false时Index/Confidence仍是最佳猜测。
type Prediction struct {
	Index         int
	Confidence    float64
	Probabilities []float64
	Logits        []float64
	OK            bool
}

type denseLayer struct {
	weights *mat.Dense
	bias    *mat.VecDense
	bn      *model.BatchNorm
}

// Engine 推理引擎，只读地引用模型参数，可并发调用Infer
type Engine struct {
	model     *model.Model
	hidden    []denseLayer
	output    denseLayer
	threshold float64
}

// NewEngine 校验模型并构建矩阵视图
func NewEngine(m *model.Model) (*Engine, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	e := &Engine{model: m, threshold: m.Threshold()}
	for i := range m.Hidden {
		h := &m.Hidden[i]
		e.hidden = append(e.hidden, newDenseLayer(&h.Dense, &h.BatchNorm))
	}
	e.output = newDenseLayer(&m.Output, nil)
	return e, nil
}

func newDenseLayer(d *model.Dense, bn *model.BatchNorm) denseLayer {
	return denseLayer{
		weights: mat.NewDense(d.In, d.Out, d.Weights),
		bias:    mat.NewVecDense(d.Out, d.Bias),
		bn:      bn,
	}
}

// Model 引擎使用的模型
func (e *Engine) Model() *model.Model {
	return e.model
}

// Threshold 置信度门限
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Infer 对 InputHeight×InputWidth 的特征矩阵做推理
func (e *Engine) Infer(features [][]float64) (Prediction, error) {
	h, w := e.model.InputHeight, e.model.InputWidth
	if len(features) != h {
		return Prediction{}, fmt.Errorf("%w: got %d rows, want %d", ErrInputShape, len(features), h)
	}
	flat := make([]float64, 0, h*w)
	for r, row := range features {
		if len(row) != w {
			return Prediction{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInputShape, r, len(row), w)
		}
		flat = append(flat, row...)
	}
	return e.InferFlat(flat)
}

// InferFlat 对按行主序展平的输入做推理
func (e *Engine) InferFlat(input []float64) (Prediction, error) {
	if len(input) != e.model.InputSize() {
		return Prediction{}, fmt.Errorf("%w: got %d values, want %d", ErrInputShape, len(input), e.model.InputSize())
	}
	x := mat.NewVecDense(len(input), append([]float64(nil), input...))
	for _, l := range e.hidden {
		x = l.forward(x)
		ReLU(x.RawVector().Data)
		BatchNormalize(x.RawVector().Data, l.bn)
	}
	logits := e.output.forward(x).RawVector().Data

	probs := Softmax(nil, logits)
	index, confidence := Decide(probs)
	return Prediction{
		Index:         index,
		Confidence:    confidence,
		Probabilities: probs,
		Logits:        logits,
		OK:            confidence >= e.threshold,
	}, nil
}

// forward 计算 x·W + b
func (l denseLayer) forward(x *mat.VecDense) *mat.VecDense {
	_, out := l.weights.Dims()
	y := mat.NewVecDense(out, nil)
	y.MulVec(l.weights.T(), x)
	y.AddVec(y, l.bias)
	return y
}

// ReLU 原地把负值置0
func ReLU(data []float64) {
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
}

// BatchNormalize 推理模式批归一化：(x-mean)/sqrt(var+eps)*gamma+beta
func BatchNormalize(data []float64, bn *model.BatchNorm) {
	eps := bn.Eps()
	for i := range data {
		norm := (data[i] - bn.MovingMean[i]) / math.Sqrt(bn.MovingVariance[i]+eps)
		data[i] = norm*bn.Gamma[i] + bn.Beta[i]
	}
}

// Softmax 减去最大值后取指数再归一化，结果写入dst
func Softmax(dst, logits []float64) []float64 {
	if len(dst) < len(logits) {
		dst = make([]float64, len(logits))
	}
	dst = dst[:len(logits)]
	if len(logits) == 0 {
		return dst
	}
	maxVal := floats.Max(logits)
	for i, v := range logits {
		dst[i] = math.Exp(v - maxVal)
	}
	floats.Scale(1/floats.Sum(dst), dst)
	return dst
}

// Decide 返回概率最大的类别及其概率，并列时取较小的索引
func Decide(probs []float64) (int, float64) {
	if len(probs) == 0 {
		return -1, 0
	}
	index := floats.MaxIdx(probs)
	return index, probs[index]
}
