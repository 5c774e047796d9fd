// Package config loads leash defaults from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file consulted when no --config flag is given.
const DefaultFile = "leash.yaml"

// Config carries run defaults. Flag values override anything loaded here.
type Config struct {
	// Timeout is the default run deadline.
	Timeout Duration `yaml:"timeout"`
	// KillGrace is how long finalization waits after the graceful stop
	// signal before force-killing the root. Zero disables the grace.
	KillGrace Duration `yaml:"killGrace"`
	// ReapMaxDepth bounds the process-tree traversal on timeout.
	ReapMaxDepth int `yaml:"reapMaxDepth"`
	// LogLevel is a logrus level name.
	LogLevel string `yaml:"logLevel"`
	// Redact masks secret-looking values in logged command lines.
	Redact bool `yaml:"redact"`
	// MetricsAddr, when set, serves /metrics for the duration of a run.
	MetricsAddr string `yaml:"metricsAddr"`
}

// Duration wraps time.Duration with textual YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Timeout:      Duration{Duration: time.Minute},
		KillGrace:    Duration{Duration: 2 * time.Second},
		ReapMaxDepth: 32,
		LogLevel:     "info",
		Redact:       true,
	}
}

// Load reads the config at path. A missing DefaultFile yields pure defaults;
// a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	cfg := Default()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// ApplyDefaults fills zero values with the built-in defaults.
func (c *Config) ApplyDefaults() {
	def := Default()
	if c.Timeout.Duration == 0 {
		c.Timeout = def.Timeout
	}
	if c.ReapMaxDepth == 0 {
		c.ReapMaxDepth = def.ReapMaxDepth
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate rejects values the runner cannot honor.
func (c *Config) Validate() error {
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout.Duration)
	}
	if c.KillGrace.Duration < 0 {
		return fmt.Errorf("killGrace must not be negative, got %s", c.KillGrace.Duration)
	}
	if c.ReapMaxDepth < 0 {
		return fmt.Errorf("reapMaxDepth must not be negative, got %d", c.ReapMaxDepth)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	return nil
}
