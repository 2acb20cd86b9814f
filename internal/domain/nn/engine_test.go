package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-cmd-recognizer/internal/domain/model"
)

// logitModel 没有隐藏层、输出权重为0的模型，输出logits恒等于bias
func logitModel(bias []float64) *model.Model {
	m := model.Blank("logits", 2, 3, nil, model.DefaultLabels)
	copy(m.Output.Bias, bias)
	return m
}

func randomModel(seed int64) *model.Model {
	r := rand.New(rand.NewSource(seed))
	m := model.Blank("random", 30, 39, []int{32, 16}, model.DefaultLabels)
	fill := func(s []float64, scale float64) {
		for i := range s {
			s[i] = (r.Float64()*2 - 1) * scale
		}
	}
	for i := range m.Hidden {
		fill(m.Hidden[i].Dense.Weights, 0.1)
		fill(m.Hidden[i].Dense.Bias, 0.1)
		fill(m.Hidden[i].BatchNorm.Beta, 0.2)
		fill(m.Hidden[i].BatchNorm.MovingMean, 0.2)
	}
	fill(m.Output.Weights, 0.5)
	fill(m.Output.Bias, 0.1)
	return m
}

func zeroFeatures(h, w int) [][]float64 {
	f := make([][]float64, h)
	for i := range f {
		f[i] = make([]float64, w)
	}
	return f
}

func TestSoftmax(t *testing.T) {
	logits := []float64{1.5, -2, 0.3, 7, 7 - 1e-9}
	probs := Softmax(nil, logits)
	var sum float64
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		sum += p
	}
	assert.InDelta(t, 1, sum, 1e-12)
	index, _ := Decide(probs)
	assert.Equal(t, 3, index)

	// 大数值不会溢出
	big := Softmax(nil, []float64{1000, 1000})
	assert.InDelta(t, 0.5, big[0], 1e-12)
	assert.False(t, math.IsNaN(big[1]))
}

func TestSoftmax_ArgmaxMatchesLogits(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		logits := make([]float64, 3)
		for j := range logits {
			logits[j] = r.NormFloat64() * 5
		}
		probs := Softmax(nil, logits)
		pi, _ := Decide(probs)
		li, _ := Decide(logits)
		assert.Equal(t, li, pi)
	}
}

func TestConfidenceGate(t *testing.T) {
	// 其余logits为0时，p = e^a/(e^a+2)，a = ln(2p/(1-p))
	logitFor := func(p float64) float64 { return math.Log(2 * p / (1 - p)) }

	low, err := NewEngine(logitModel([]float64{logitFor(0.59), 0, 0}))
	require.NoError(t, err)
	predLow, err := low.Infer(zeroFeatures(2, 3))
	require.NoError(t, err)

	high, err := NewEngine(logitModel([]float64{logitFor(0.61), 0, 0}))
	require.NoError(t, err)
	predHigh, err := high.Infer(zeroFeatures(2, 3))
	require.NoError(t, err)

	assert.InDelta(t, 0.59, predLow.Confidence, 1e-9)
	assert.InDelta(t, 0.61, predHigh.Confidence, 1e-9)
	assert.False(t, predLow.OK)
	assert.True(t, predHigh.OK)
	assert.Equal(t, 0, predLow.Index)
	assert.Equal(t, predLow.Index, predHigh.Index)
}

func TestInfer_Deterministic(t *testing.T) {
	e, err := NewEngine(randomModel(3))
	require.NoError(t, err)

	a, err := e.Infer(zeroFeatures(30, 39))
	require.NoError(t, err)
	b, err := e.Infer(zeroFeatures(30, 39))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var sum float64
	for _, p := range a.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1, sum, 1e-9)
	assert.Len(t, a.Logits, 3)
}

func TestInfer_MatchesManualForward(t *testing.T) {
	m := randomModel(5)
	e, err := NewEngine(m)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(9))
	features := zeroFeatures(30, 39)
	var x []float64
	for i := range features {
		for j := range features[i] {
			features[i][j] = r.NormFloat64()
			x = append(x, features[i][j])
		}
	}

	dense := func(in []float64, d model.Dense) []float64 {
		out := make([]float64, d.Out)
		for o := 0; o < d.Out; o++ {
			sum := d.Bias[o]
			for i := 0; i < d.In; i++ {
				sum += in[i] * d.Weights[i*d.Out+o]
			}
			out[o] = sum
		}
		return out
	}
	for _, h := range m.Hidden {
		x = dense(x, h.Dense)
		for i := range x {
			x[i] = math.Max(0, x[i])
			x[i] = (x[i]-h.BatchNorm.MovingMean[i])/math.Sqrt(h.BatchNorm.MovingVariance[i]+1e-3)*h.BatchNorm.Gamma[i] + h.BatchNorm.Beta[i]
		}
	}
	logits := dense(x, m.Output)

	pred, err := e.Infer(features)
	require.NoError(t, err)
	for i := range logits {
		assert.InDelta(t, logits[i], pred.Logits[i], 1e-9)
	}
	// 模型参数不被推理修改
	assert.Equal(t, randomModel(5), m)
}

func TestInfer_Shape(t *testing.T) {
	e, err := NewEngine(randomModel(1))
	require.NoError(t, err)

	_, err = e.Infer(zeroFeatures(29, 39))
	assert.ErrorIs(t, err, ErrInputShape)
	_, err = e.Infer(zeroFeatures(30, 38))
	assert.ErrorIs(t, err, ErrInputShape)
	_, err = e.InferFlat(make([]float64, 10))
	assert.ErrorIs(t, err, ErrInputShape)
}

func TestNewEngine_Invalid(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)

	m := randomModel(1)
	m.Output.Weights = m.Output.Weights[:1]
	_, err = NewEngine(m)
	assert.Error(t, err)
}

func TestBatchNormalize(t *testing.T) {
	bn := &model.BatchNorm{
		Gamma:          []float64{2},
		Beta:           []float64{1},
		MovingMean:     []float64{3},
		MovingVariance: []float64{4 - 1e-3},
	}
	data := []float64{7}
	BatchNormalize(data, bn)
	// (7-3)/2*2+1
	assert.InDelta(t, 5, data[0], 1e-12)
}
