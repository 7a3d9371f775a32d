// Package config loads the settings of the brainyflow CLI from an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alt-coder/brainyflow-go/tools"
	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v3"
)

// Environment variables read by Load. Provider credentials are read by the
// providers themselves.
const (
	EnvProvider      = "BRAINYFLOW_PROVIDER"
	EnvModel         = "BRAINYFLOW_MODEL"
	EnvConcurrency   = "BRAINYFLOW_CONCURRENCY"
	EnvLogLevel      = "BRAINYFLOW_LOG_LEVEL"
	EnvLogFormat     = "BRAINYFLOW_LOG_FORMAT"
	EnvTraceEndpoint = "BRAINYFLOW_TRACE_ENDPOINT"
)

// Config holds the CLI settings.
type Config struct {
	Provider    string          `yaml:"provider" validate:"required,oneof=mock openai gemini"`
	Model       string          `yaml:"model"`
	Concurrency int             `yaml:"concurrency" validate:"gte=0"`
	Log         LogConfig       `yaml:"log"`
	Tracing     TracingConfig   `yaml:"tracing"`
	MCP         tools.MCPConfig `yaml:"mcp"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"required,oneof=console json"`
}

// TracingConfig enables span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name" validate:"required"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Provider: "mock",
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Tracing: TracingConfig{
			ServiceName: "brainyflow",
			SampleRatio: 1,
		},
	}
}

// Load reads path, when not empty, over the defaults, applies the environment
// and validates the result.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with a custom environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvProvider, &c.Provider)
	set(EnvModel, &c.Model)
	set(EnvLogLevel, &c.Log.Level)
	set(EnvLogFormat, &c.Log.Format)
	set(EnvTraceEndpoint, &c.Tracing.Endpoint)

	if v, ok := lookup(EnvConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		c.Concurrency = n
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, srv := range c.MCP.Servers {
		if srv.Command == "" && !srv.Disabled {
			return fmt.Errorf("invalid config: mcp server %q has no command", name)
		}
	}
	return nil
}
