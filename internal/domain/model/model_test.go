package model

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlankIsValid(t *testing.T) {
	m := Blank("speech", 30, 39, []int{32, 16}, DefaultLabels)
	require.NoError(t, m.Validate())
	assert.Equal(t, 1170, m.InputSize())
	assert.Equal(t, 3, m.NumClasses())
	assert.Equal(t, 1170, m.Hidden[0].Dense.In)
	assert.Equal(t, 16, m.Output.In)
	assert.Equal(t, DefaultConfidenceThreshold, m.Threshold())
}

func TestLabel(t *testing.T) {
	m := Blank("speech", 2, 2, nil, DefaultLabels)
	assert.Equal(t, "add", m.Label(0))
	assert.Equal(t, "none", m.Label(1))
	assert.Equal(t, "sub", m.Label(2))
	assert.Equal(t, "unknown", m.Label(3))
	assert.Equal(t, "unknown", m.Label(-1))
}

func TestValidate_Errors(t *testing.T) {
	m := Blank("speech", 30, 39, []int{32, 16}, DefaultLabels)
	m.Hidden[1].Dense.In = 31
	assert.Error(t, m.Validate())

	m = Blank("speech", 30, 39, []int{32, 16}, DefaultLabels)
	m.Hidden[0].BatchNorm.Gamma = m.Hidden[0].BatchNorm.Gamma[:3]
	assert.Error(t, m.Validate())

	m = Blank("speech", 30, 39, []int{32, 16}, DefaultLabels)
	m.Labels = m.Labels[:2]
	assert.Error(t, m.Validate())

	m = Blank("speech", 30, 39, []int{32, 16}, DefaultLabels)
	m.Output.Bias = nil
	assert.Error(t, m.Validate())

	m = Blank("speech", 30, 39, []int{32, 16}, DefaultLabels)
	m.Hidden[0].BatchNorm.MovingVariance[0] = -1
	assert.Error(t, m.Validate())

	m = Blank("speech", 0, 39, nil, DefaultLabels)
	assert.Error(t, m.Validate())
}

func TestSaveLoad(t *testing.T) {
	m := Blank("speech", 3, 4, []int{5}, DefaultLabels)
	m.Output.Bias[2] = 1.25
	m.ConfidenceThreshold = 0.7

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
	assert.Equal(t, 0.7, loaded.Threshold())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"name":"x","input_height":1,"input_width":2,"labels":["a"],"output":{"in":2,"out":1,"weights":[1],"bias":[0]}}`))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`not json`))
	assert.Error(t, err)

	m, err := Decode(strings.NewReader(`{"name":"x","input_height":1,"input_width":2,"labels":["a"],"output":{"in":2,"out":1,"weights":[1,2],"bias":[0]}}`))
	require.NoError(t, err)
	assert.Equal(t, "a", m.Label(0))
}
