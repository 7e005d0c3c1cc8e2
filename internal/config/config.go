package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultBufferSize    = 4096
	DefaultQueueSize     = 64
	DefaultListen        = "127.0.0.1:8765"
	DefaultAggregateName = "micstream Output Device"
)

type Config struct {
	LogLevel  string          `json:"log_level"` // "debug", "info", "warn", "error"
	Audio     AudioConfig     `json:"audio"`
	Aggregate AggregateConfig `json:"aggregate"`
	Server    ServerConfig    `json:"server"`

	path string // file this config was loaded from
}

type AudioConfig struct {
	Backend    string `json:"backend"`     // "portaudio" or "fake"
	DeviceID   string `json:"device_id"`   // empty means system default input
	BufferSize int    `json:"buffer_size"` // reported to hosts, not enforced on hardware
	QueueSize  int    `json:"queue_size"`  // messages buffered per capture session
}

type AggregateConfig struct {
	Name string `json:"name"`
}

type ServerConfig struct {
	Listen string `json:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:    "portaudio",
			DeviceID:   "",
			BufferSize: DefaultBufferSize,
			QueueSize:  DefaultQueueSize,
		},
		Aggregate: AggregateConfig{
			Name: DefaultAggregateName,
		},
		Server: ServerConfig{
			Listen: DefaultListen,
		},
	}
}

// Load reads the config from disk or returns defaults, then applies
// environment overrides (including a .env file in the working directory).
func Load() (*Config, error) {
	return LoadFrom(configPath())
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

// readFile returns defaults overlaid with the JSON file at path, if any.
func readFile(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return cfg, nil
}

// UpdateFile applies fn to the config stored at path and writes it back.
// Environment overrides are not applied, so they never leak into the file.
func UpdateFile(path string, fn func(*Config)) error {
	cfg, err := readFile(path)
	if err != nil {
		return err
	}
	fn(cfg)
	return cfg.SaveTo(path)
}

// applyEnv overrides file values with MICSTREAM_* variables.
func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("MICSTREAM_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv("MICSTREAM_BACKEND"); ok {
		c.Audio.Backend = v
	}
	if v, ok := os.LookupEnv("MICSTREAM_DEVICE_ID"); ok {
		c.Audio.DeviceID = v
	}
	if v, ok := os.LookupEnv("MICSTREAM_BUFFER_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("MICSTREAM_BUFFER_SIZE must be an integer")
		}
		c.Audio.BufferSize = n
	}
	if v, ok := os.LookupEnv("MICSTREAM_QUEUE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("MICSTREAM_QUEUE_SIZE must be an integer")
		}
		c.Audio.QueueSize = n
	}
	if v, ok := os.LookupEnv("MICSTREAM_AGGREGATE_NAME"); ok {
		c.Aggregate.Name = v
	}
	if v, ok := os.LookupEnv("MICSTREAM_LISTEN"); ok {
		c.Server.Listen = v
	}
	return nil
}

func (c *Config) normalize() {
	if c.Audio.BufferSize <= 0 {
		c.Audio.BufferSize = DefaultBufferSize
	}
	if c.Audio.QueueSize <= 0 {
		c.Audio.QueueSize = DefaultQueueSize
	}
	if c.Aggregate.Name == "" {
		c.Aggregate.Name = DefaultAggregateName
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
}

// Save writes the config to the file it was loaded from
func (c *Config) Save() error {
	return c.SaveTo(c.FilePath())
}

// FilePath returns the file this config was loaded from, or the
// platform default for configs that were not loaded.
func (c *Config) FilePath() string {
	if c.path != "" {
		return c.path
	}
	return configPath()
}

// SaveTo writes the config to path.
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns the platform-specific config file path.
func Path() string {
	return configPath()
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "micstream", "config.json")
}
