package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "absent.json")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.LogLevel, cfg.LogLevel)
	assert.Equal(t, want.Audio, cfg.Audio)
	assert.Equal(t, want.Aggregate, cfg.Aggregate)
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, path, cfg.FilePath())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"log_level": "debug",
		"audio": {"device_id": "BuiltInMicrophoneDevice", "queue_size": 8},
		"server": {"listen": ":9000"}
	}`), 0644))

	t.Setenv("MICSTREAM_DEVICE_ID", "USB-Mic")
	t.Setenv("MICSTREAM_BUFFER_SIZE", "2048")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "USB-Mic", cfg.Audio.DeviceID)
	assert.Equal(t, 2048, cfg.Audio.BufferSize)
	assert.Equal(t, 8, cfg.Audio.QueueSize)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, DefaultAggregateName, cfg.Aggregate.Name)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MICSTREAM_BACKEND=fake\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("MICSTREAM_BACKEND") })

	cfg, err := LoadFrom(filepath.Join(dir, "none.json"))
	require.NoError(t, err)
	assert.Equal(t, "fake", cfg.Audio.Backend)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MICSTREAM_QUEUE_SIZE", "lots")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	os.Unsetenv("MICSTREAM_QUEUE_SIZE")
	_, err = LoadFrom(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Audio.DeviceID = "mic"
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "mic", loaded.Audio.DeviceID)
}

func TestSaveWritesLoadedFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.json")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	cfg.Audio.QueueSize = 5
	require.NoError(t, cfg.Save())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Audio.QueueSize)
}

func TestUpdateFileSkipsEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level": "warn"}`), 0644))
	t.Setenv("MICSTREAM_BACKEND", "fake")
	t.Setenv("MICSTREAM_LISTEN", ":1")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, "fake", cfg.Audio.Backend)

	require.NoError(t, UpdateFile(cfg.FilePath(), func(c *Config) {
		c.Audio.DeviceID = "usb"
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored Config
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "usb", stored.Audio.DeviceID)
	assert.Equal(t, "warn", stored.LogLevel)
	assert.Equal(t, "portaudio", stored.Audio.Backend)
	assert.Equal(t, DefaultListen, stored.Server.Listen)
}
