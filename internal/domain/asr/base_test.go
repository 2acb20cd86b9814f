package asr

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-cmd-recognizer/constants"
	"speech-cmd-recognizer/internal/domain/asr/feature"
	"speech-cmd-recognizer/internal/domain/model"
)

func testConfig() Config {
	return Config{
		Feature:     feature.DefaultConfig(),
		VadProvider: constants.VadTypeEnergy,
	}
}

// toneBuffer 静音缓冲区中间[from,to)插入1kHz正弦
func toneBuffer(n, from, to int) []uint16 {
	buf := make([]uint16, n)
	for i := range buf {
		v := 2048.0
		if i >= from && i < to {
			v += 1000 * math.Sin(2*math.Pi*1000*float64(i)/8000)
		}
		buf[i] = uint16(math.Round(v))
	}
	return buf
}

func TestExtractFeatures_ToneBracketed(t *testing.T) {
	r, err := New(testConfig(), nil)
	require.NoError(t, err)
	defer r.Close()

	from, to := 8000/3, 2*8000/3
	capture, err := r.ExtractFeatures(context.Background(), toneBuffer(8000, from, to))
	require.NoError(t, err)

	ep := capture.Endpoints
	require.True(t, ep.Found())
	hop := r.FeatureConfig().Hop()
	assert.InDelta(t, from/hop, ep.Start, 2)
	assert.InDelta(t, to/hop-1, ep.End, 2)
	assert.LessOrEqual(t, ep.Start, ep.End)

	assert.NotEmpty(t, capture.ID)
	assert.Len(t, capture.Raw, 8000)
	assert.Len(t, capture.Features.Combined, 61)
	assert.Len(t, capture.Features.Combined[0], 39)
	assert.Len(t, capture.Window, 256)
}

func TestExtractFeatures_Silence(t *testing.T) {
	r, err := New(testConfig(), nil)
	require.NoError(t, err)

	capture, err := r.ExtractFeatures(context.Background(), toneBuffer(8000, 0, 0))
	require.NoError(t, err)
	assert.False(t, capture.Endpoints.Found())
	start, end := capture.Endpoints.Legacy()
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)
}

func TestExtractFeatures_SnapshotIndependent(t *testing.T) {
	r, err := New(testConfig(), nil)
	require.NoError(t, err)

	first, err := r.ExtractFeatures(context.Background(), toneBuffer(8000, 2000, 6000))
	require.NoError(t, err)
	saved := first.Features.Combined[30][0]

	_, err = r.ExtractFeatures(context.Background(), toneBuffer(8000, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, saved, first.Features.Combined[30][0])
}

func TestRecognize_BlankModel(t *testing.T) {
	m := model.Blank("blank", 30, 39, []int{32, 16}, model.DefaultLabels)
	r, err := New(testConfig(), m)
	require.NoError(t, err)

	result, err := r.Recognize(context.Background(), toneBuffer(8000, 3000, 5000))
	require.NoError(t, err)

	// 全零权重输出均匀分布，低于门限
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Index)
	assert.Equal(t, constants.LabelAdd, result.Label)
	assert.InDelta(t, 1.0/3, result.Confidence, 1e-9)
	assert.Len(t, result.Probabilities, 3)
	assert.NotEmpty(t, result.ID)
	assert.True(t, result.Endpoints.Found())
}

func TestRecognize_ConfidentModel(t *testing.T) {
	m := model.Blank("biased", 30, 39, []int{32, 16}, model.DefaultLabels)
	m.Output.Bias[2] = 5
	r, err := New(testConfig(), m)
	require.NoError(t, err)

	result, err := r.Recognize(context.Background(), toneBuffer(8000, 3000, 5000))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, constants.LabelSub, result.Label)
}

func TestRecognize_Errors(t *testing.T) {
	r, err := New(testConfig(), nil)
	require.NoError(t, err)
	_, err = r.Recognize(context.Background(), toneBuffer(8000, 0, 0))
	assert.Error(t, err)

	m := model.Blank("blank", 30, 39, []int{32, 16}, model.DefaultLabels)
	r, err = New(testConfig(), m)
	require.NoError(t, err)

	_, err = r.Recognize(context.Background(), make([]uint16, 9000))
	assert.ErrorIs(t, err, feature.ErrBufferLength)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Recognize(ctx, toneBuffer(8000, 0, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_InvalidProvider(t *testing.T) {
	cfg := testConfig()
	cfg.VadProvider = "webrtc"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestReshape(t *testing.T) {
	combined := [][]float64{{1, 2, 3}, {4, 5, 6}}

	out := Reshape(combined, 3, 4)
	assert.Equal(t, [][]float64{{1, 2, 3, 0}, {4, 5, 6, 0}, {0, 0, 0, 0}}, out)

	out = Reshape(combined, 1, 2)
	assert.Equal(t, [][]float64{{1, 2}}, out)

	// 不共享底层数组
	out[0][0] = 9
	assert.Equal(t, 1.0, combined[0][0])
}
