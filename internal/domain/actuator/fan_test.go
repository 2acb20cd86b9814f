package actuator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-cmd-recognizer/constants"
)

type recordDriver struct {
	duties []int
	leds   []int
	err    error
}

func (r *recordDriver) SetDuty(duty int) error {
	r.duties = append(r.duties, duty)
	return r.err
}

func (r *recordDriver) ToggleLED(n int) error {
	r.leds = append(r.leds, n)
	return r.err
}

func TestApply_StepsAndClamps(t *testing.T) {
	d := &recordDriver{}
	f, err := NewFanController(d)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Apply(constants.LabelAdd))
	}
	assert.Equal(t, MaxLevel, f.Level())

	require.NoError(t, f.Apply(constants.LabelNone))
	assert.Equal(t, MaxLevel, f.Level())

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Apply(constants.LabelSub))
	}
	assert.Equal(t, 0, f.Level())

	assert.Equal(t, []int{0, 30, 60, 90, 90, 90, 60, 30, 0, 0, 0}, d.duties)
	assert.Equal(t, LedAdd, d.leds[0])
	assert.Equal(t, LedSub, d.leds[len(d.leds)-1])
	assert.Len(t, d.leds, 10)
}

func TestApply_UnknownLabel(t *testing.T) {
	d := &recordDriver{}
	f, err := NewFanController(d)
	require.NoError(t, err)

	require.NoError(t, f.Apply(constants.LabelUnknown))
	assert.Equal(t, 0, f.Level())
	assert.Equal(t, []int{0}, d.duties)
	assert.Empty(t, d.leds)
}

func TestDriverError(t *testing.T) {
	d := &recordDriver{err: errors.New("pwm")}
	_, err := NewFanController(d)
	assert.Error(t, err)
}

func TestLogDriver(t *testing.T) {
	f, err := NewFanController(LogDriver{})
	require.NoError(t, err)
	assert.NoError(t, f.Apply(constants.LabelAdd))
	assert.Equal(t, 1, f.Level())
}
