package config

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/kochabx/dbguard/core/validator"
)

// Config loads configuration into a target once at startup. The loaded
// target is treated as immutable afterwards.
type Config struct {
	mu       sync.Mutex
	viper    *viper.Viper        // viper instance for configuration management
	validate validator.Validator // validator for configuration validation
	target   any                 // destination the configuration is unmarshalled into
	loader   Loader              // loader is responsible for loading configuration
}

// New creates a new Config instance with the given options
// If no loader is provided, an EnvLoader is used.
func New(target any, opts ...Option) *Config {
	c := &Config{
		viper:    viper.New(),
		validate: validator.Validate,
		target:   target,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.loader == nil {
		c.loader = NewEnvLoader(c.viper, c.validate)
	}

	return c
}

// Load reads the configuration using the configured loader
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loader.Load(c.target)
}

// GetViper returns the underlying viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.viper
}
