package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"phile/internal/app/errors"
)

// Config represents the application configuration
type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Timeout time.Duration `yaml:"timeout"`
	Console struct {
		Prompt string `yaml:"prompt"`
	} `yaml:"console"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Logging.Level = LogLevel
	cfg.Logging.Format = LogFormat
	cfg.Timeout = DefaultTimeout
	cfg.Console.Prompt = Prompt

	return cfg
}

// Load loads the configuration from phile.yaml, falling back to
// defaults when the file is absent.
func Load() (*Config, error) {
	return LoadFile(FileName)
}

// LoadFile loads the configuration from the given path.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, errors.ErrFailedToReadConfig
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.ErrFailedToReadConfig
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.ErrFailedToParseConfig
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// applyDefaults fills fields the file left empty
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevel
	}

	if c.Logging.Format == "" {
		c.Logging.Format = LogFormat
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.Console.Prompt == "" {
		c.Console.Prompt = Prompt
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	return nil
}

// Write marshals the configuration to path, creating a starter file.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.ErrFailedToParseConfig
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.ErrFailedToReadConfig
	}

	return nil
}
