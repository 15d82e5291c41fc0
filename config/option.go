package config

import (
	"github.com/spf13/viper"

	"github.com/kochabx/dbguard/core/validator"
)

// Option is a function that configures a Config
type Option func(*Config)

// WithViper sets a custom viper instance
func WithViper(v *viper.Viper) Option {
	return func(c *Config) {
		c.viper = v
	}
}

// WithValidator sets a custom validator
func WithValidator(v validator.Validator) Option {
	return func(c *Config) {
		c.validate = v
	}
}

// WithLoader sets the configuration loader
func WithLoader(loader Loader) Option {
	return func(c *Config) {
		c.loader = loader
	}
}

// WithFile loads from the named file under paths, with env overrides.
// A missing file is tolerated when optional is true.
func WithFile(name string, paths []string, optional bool) Option {
	return func(c *Config) {
		l := NewFileLoader(name, paths, c.viper, c.validate)
		if optional {
			l.Optional()
		}
		c.loader = l
	}
}
