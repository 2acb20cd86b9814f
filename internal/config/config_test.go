package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-cmd-recognizer/constants"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"mode": "recognize",
		"log": {"level": "debug"},
		"model": {"path": "model.json"},
		"asr": {"feature": {"workers": 4}, "vad": {"energy_factor": 2}},
		"source": {"type": "dir", "path": "samples", "loop": true},
		"telemetry": {"sinks": ["writer", "redis"], "mqtt": {"qos": 1, "timeout": "2s"}},
		"redis": {"enable": true, "host": "redis.local", "port": 6380},
		"actuator": {"enable": false}
	}`)

	cfg, v, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", v.GetString("log.level"))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Log.MaxAge)
	assert.Equal(t, "model.json", cfg.Model.Path)

	// 未出现的键保留默认值
	assert.Equal(t, 4, cfg.Asr.Feature.Workers)
	assert.Equal(t, 8000, cfg.Asr.Feature.BufferLen)
	assert.Equal(t, 0.95, cfg.Asr.Feature.PreEmphasis)
	assert.EqualValues(t, 2, cfg.Asr.Vad["energy_factor"])
	assert.Equal(t, constants.VadTypeEnergy, cfg.Asr.VadProvider)

	assert.Equal(t, constants.SourceTypeDir, cfg.Source.Type)
	assert.True(t, cfg.Source.Loop)
	assert.Equal(t, 8000, cfg.Source.BufferLen)

	assert.Equal(t, []string{"writer", "redis"}, cfg.Telemetry.Sinks)
	assert.Equal(t, byte(1), cfg.Telemetry.Mqtt.Qos)
	assert.Equal(t, 2*time.Second, cfg.Telemetry.Mqtt.Timeout)
	assert.Equal(t, 1883, cfg.Telemetry.Mqtt.Port)

	assert.True(t, cfg.Redis.Enable)
	assert.Equal(t, "redis.local", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 3, cfg.Redis.MaxRetries)

	assert.False(t, cfg.Actuator.Enable)
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "mode: train\nsource:\n  type: tone\n")
	cfg, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, constants.ModeTrain, cfg.Mode)
	assert.Equal(t, 1, cfg.Source.Tone.Count)
}

func TestLoadFile_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing model": `{"mode": "recognize"}`,
		"bad mode":      `{"mode": "sleep"}`,
		"bad feature":   `{"mode": "train", "asr": {"feature": {"frame_overlap": 256}}}`,
		"long source":   `{"mode": "train", "source": {"buffer_len": 9000}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := LoadFile(writeFile(t, "config.json", content))
			assert.Error(t, err)
		})
	}

	_, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSaveConfig(t *testing.T) {
	cfg := Default()
	cfg.Mode = constants.ModeTrain
	path := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, cfg.SaveConfig(path))

	loaded, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Mode, loaded.Mode)
	assert.Equal(t, cfg.Asr.Feature, loaded.Asr.Feature)
	assert.Equal(t, cfg.Telemetry.Sinks, loaded.Telemetry.Sinks)
	assert.Equal(t, cfg.Redis.Host, loaded.Redis.Host)
}
