package acquisition

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-cmd-recognizer/constants"
)

func writeWav(t *testing.T, path string, data []int, channels int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := wav.NewEncoder(f, 8000, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: 8000},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestToADC(t *testing.T) {
	assert.Equal(t, uint16(2048), ToADC(0))
	assert.Equal(t, uint16(2048+1), ToADC(16))
	assert.Equal(t, uint16(2048-1), ToADC(-16))
	assert.Equal(t, uint16(4095), ToADC(32767))
	assert.Equal(t, uint16(0), ToADC(-32768))
}

func TestWavSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	writeWav(t, path, []int{0, 160, -160, 32767}, 1)

	s := NewWavSource(path, 6, false)
	buf, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint16{2048, 2058, 2038, 4095, 2048, 2048}, buf)

	_, err = s.Acquire(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	looped := NewWavSource(path, 2, true)
	for i := 0; i < 3; i++ {
		buf, err := looped.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []uint16{2048, 2058}, buf)
	}
}

func TestWavSource_MissingFileExhausts(t *testing.T) {
	s := NewWavSource(filepath.Join(t.TempDir(), "missing.wav"), 8, false)
	_, err := s.Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)

	_, err = s.Acquire(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadWav_Stereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWav(t, path, []int{0, 0, 1, 1}, 2)
	_, _, err := ReadWav(path, 8)
	assert.Error(t, err)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, filepath.Join(dir, "b.wav"), []int{320}, 1)
	writeWav(t, filepath.Join(dir, "a.wav"), []int{160}, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	s, err := NewDirSource(dir, 1, false)
	require.NoError(t, err)
	assert.Len(t, s.Files(), 2)

	ctx := context.Background()
	buf, err := s.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint16{2058}, buf)
	buf, err = s.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint16{2068}, buf)
	_, err = s.Acquire(ctx)
	assert.ErrorIs(t, err, io.EOF)

	_, err = NewDirSource(t.TempDir(), 1, false)
	assert.Error(t, err)
}

func TestToneSource(t *testing.T) {
	s := NewToneSource(ToneConfig{Frequency: 1000, Amplitude: 1000, From: 2, To: 6, Count: 2}, 8)
	ctx := context.Background()
	buf, err := s.Acquire(ctx)
	require.NoError(t, err)
	require.Len(t, buf, 8)
	assert.Equal(t, uint16(2048), buf[0])
	assert.Equal(t, uint16(2048), buf[7])
	// sin(2π·1000·2/8000) = 1
	assert.Equal(t, uint16(3048), buf[2])

	buf[0] = 0
	again, err := s.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(2048), again[0])

	_, err = s.Acquire(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestNewSource(t *testing.T) {
	s, err := NewSource(Config{Type: constants.SourceTypeTone, BufferLen: 10, Tone: ToneConfig{Frequency: 500}})
	require.NoError(t, err)
	assert.IsType(t, &ToneSource{}, s)

	_, err = NewSource(Config{Type: "adc", BufferLen: 10})
	assert.Error(t, err)
	_, err = NewSource(Config{Type: constants.SourceTypeTone})
	assert.Error(t, err)
}

// blockingSource 在release关闭前阻塞
type blockingSource struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingSource) Acquire(ctx context.Context) ([]uint16, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	select {
	case <-b.release:
		return []uint16{1, 2, 3}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestHandoff_NoOverlap(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	h := NewHandoff(src)
	ctx := context.Background()

	require.NoError(t, h.Start(ctx))
	assert.True(t, h.Busy())
	assert.ErrorIs(t, h.Start(ctx), ErrBusy)

	close(src.release)
	buf, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3}, buf)
	assert.False(t, h.Busy())

	// 结果取走后可以重新开始
	require.NoError(t, h.Start(ctx))
	// 结果未取走时仍然是busy
	time.Sleep(10 * time.Millisecond)
	assert.ErrorIs(t, h.Start(ctx), ErrBusy)
	_, err = h.Wait(ctx)
	require.NoError(t, err)

	h.Close()
	assert.Equal(t, 2, src.calls)
}

func TestHandoff_WaitCancelled(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	h := NewHandoff(src)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Start(ctx))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	_, err := h.Wait(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancel()
	_, err = h.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	h.Close()
}

func TestHandoff_SourceError(t *testing.T) {
	h := NewHandoff(NewToneSource(ToneConfig{Count: 1}, 4))
	ctx := context.Background()

	require.NoError(t, h.Start(ctx))
	_, err := h.Wait(ctx)
	require.NoError(t, err)

	require.NoError(t, h.Start(ctx))
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, io.EOF)
	h.Close()
}
