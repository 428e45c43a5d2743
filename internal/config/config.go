// Package config provides YAML-based configuration loading for pyassist.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level pyassist configuration, loaded from pyassist.yaml
// and overridden by PYA_* environment variables.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	UI      UIConfig      `yaml:"ui"`
	Voice   VoiceConfig   `yaml:"voice"`
	State   StateConfig   `yaml:"state"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig points at the assistant backend.
type BackendConfig struct {
	BaseURL string `yaml:"base_url" env:"PYA_BACKEND_BASE_URL"`
	// Timeout is an optional client-side request timeout. Zero leaves the
	// transport default in place.
	Timeout time.Duration `yaml:"timeout" env:"PYA_BACKEND_TIMEOUT"`
}

// UIConfig holds settings for the local web front and message rendering.
type UIConfig struct {
	Port            int    `yaml:"port" env:"PYA_UI_PORT"`
	RefreshSchedule string `yaml:"refresh_schedule" env:"PYA_UI_REFRESH_SCHEDULE"`
	TimeLayout      string `yaml:"time_layout" env:"PYA_UI_TIME_LAYOUT"`
	DateLayout      string `yaml:"date_layout" env:"PYA_UI_DATE_LAYOUT"`
	Streaming       bool   `yaml:"streaming" env:"PYA_UI_STREAMING"`
}

// VoiceConfig configures microphone capture.
type VoiceConfig struct {
	Enabled       bool          `yaml:"enabled" env:"PYA_VOICE_ENABLED"`
	Binary        string        `yaml:"binary" env:"PYA_VOICE_BINARY"`
	InputFormat   string        `yaml:"input_format" env:"PYA_VOICE_INPUT_FORMAT"`
	InputDevice   string        `yaml:"input_device" env:"PYA_VOICE_INPUT_DEVICE"`
	SampleRate    int           `yaml:"sample_rate" env:"PYA_VOICE_SAMPLE_RATE"`
	Channels      int           `yaml:"channels" env:"PYA_VOICE_CHANNELS"`
	Bitrate       int           `yaml:"bitrate" env:"PYA_VOICE_BITRATE"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"PYA_VOICE_FLUSH_INTERVAL"`
	MaxDuration   time.Duration `yaml:"max_duration" env:"PYA_VOICE_MAX_DURATION"`
}

// StateConfig locates the local preference database.
type StateConfig struct {
	Path string `yaml:"path" env:"PYA_STATE_PATH"`
}

// LogConfig selects the log level and output format ("console" or "json").
type LogConfig struct {
	Level  string `yaml:"level" env:"PYA_LOG_LEVEL"`
	Format string `yaml:"format" env:"PYA_LOG_FORMAT"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Voice: VoiceConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file is not an error: defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data = nil
	} else if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Voice: VoiceConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://127.0.0.1:5000"
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.UI.Port == 0 {
		c.UI.Port = 8080
	}
	if c.UI.RefreshSchedule == "" {
		c.UI.RefreshSchedule = "*/5 * * * *"
	}
	if c.UI.TimeLayout == "" {
		c.UI.TimeLayout = "15:04"
	}
	if c.UI.DateLayout == "" {
		c.UI.DateLayout = "2006/1/2"
	}
	if c.Voice.Binary == "" {
		c.Voice.Binary = "ffmpeg"
	}
	if c.Voice.InputFormat == "" {
		c.Voice.InputFormat = "pulse"
	}
	if c.Voice.InputDevice == "" {
		c.Voice.InputDevice = "default"
	}
	if c.Voice.SampleRate == 0 {
		c.Voice.SampleRate = 16000
	}
	if c.Voice.Channels == 0 {
		c.Voice.Channels = 1
	}
	if c.Voice.Bitrate == 0 {
		c.Voice.Bitrate = 128000
	}
	if c.Voice.FlushInterval == 0 {
		c.Voice.FlushInterval = 100 * time.Millisecond
	}
	if c.Voice.MaxDuration == 0 {
		c.Voice.MaxDuration = 30 * time.Second
	}
	if c.State.Path == "" {
		c.State.Path = defaultStatePath()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("backend.base_url %q is not an absolute URL", c.Backend.BaseURL))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, "backend.timeout must not be negative")
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		errs = append(errs, fmt.Sprintf("ui.port %d out of range", c.UI.Port))
	}
	if _, err := cron.ParseStandard(c.UI.RefreshSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("ui.refresh_schedule: %v", err))
	}
	if c.Voice.Channels < 1 {
		errs = append(errs, "voice.channels must be at least 1")
	}
	if c.Voice.FlushInterval < 0 || c.Voice.MaxDuration < 0 {
		errs = append(errs, "voice durations must not be negative")
	}
	if c.Voice.FlushInterval >= c.Voice.MaxDuration {
		errs = append(errs, "voice.flush_interval must be shorter than voice.max_duration")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be console or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pyassist.db"
	}
	return filepath.Join(dir, "pyassist", "state.db")
}
