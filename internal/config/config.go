// Package config loads the settings file of the gtpengine command.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the engine settings.
type Config struct {
	// Name and Version are reported by the name and version commands.
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Ponder enables background work between commands.
	Ponder bool `yaml:"ponder"`

	// Interrupt enables the interrupt and sleep directives.
	Interrupt bool `yaml:"interrupt"`

	// LogLevel is a zap level name: debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// SetupFile is a command file executed before the main loop.
	SetupFile string `yaml:"setup_file"`

	Sample SampleConfig `yaml:"sample"`
}

// SampleConfig configures the demonstration commands.
type SampleConfig struct {
	// Workers is the size of the worker pool used by sample-primes.
	Workers int `yaml:"workers"`

	// PonderStep is the number of iterations credited per millisecond of
	// pondering.
	PonderStep int `yaml:"ponder_step"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Name:     "gtpengine",
		Version:  "0.1.0",
		LogLevel: "info",
		Sample: SampleConfig{
			Workers:    runtime.NumCPU(),
			PonderStep: 1000,
		},
	}
}

// Load reads settings from the YAML file at path on top of the defaults.
// An empty path returns the defaults. GTPENGINE_LOG_LEVEL overrides the
// log level of the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	}

	if level := os.Getenv("GTPENGINE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings for values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Sample.Workers < 1 {
		errs = append(errs, fmt.Errorf("sample.workers must be at least 1, got %d", c.Sample.Workers))
	}
	if c.Sample.PonderStep < 1 {
		errs = append(errs, fmt.Errorf("sample.ponder_step must be at least 1, got %d", c.Sample.PonderStep))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level.
func (c *Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return level, nil
}
