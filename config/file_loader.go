package config

import (
	"errors"
	"path"
	"strings"

	"github.com/spf13/viper"

	"github.com/kochabx/dbguard/core/tag"
	"github.com/kochabx/dbguard/core/validator"
	kerrors "github.com/kochabx/dbguard/errors"
)

// ErrConfigNotFound is returned when a required config file is missing
var ErrConfigNotFound = kerrors.NotFound("config file not found")

// FileLoader loads configuration from file. Variables named by `env` tags
// override file values.
type FileLoader struct {
	viper    *viper.Viper
	validate validator.Validator
	name     string
	paths    []string
	optional bool
}

// NewFileLoader creates a new file loader
func NewFileLoader(name string, paths []string, v *viper.Viper, validate validator.Validator) *FileLoader {
	extension := path.Ext(name)
	configType := strings.TrimPrefix(extension, ".")

	for _, configPath := range paths {
		v.AddConfigPath(configPath)
	}

	v.SetConfigName(strings.TrimSuffix(name, extension))
	v.SetConfigType(configType)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &FileLoader{
		viper:    v,
		paths:    paths,
		name:     name,
		validate: validate,
	}
}

// Optional makes a missing file fall back to defaults and environment
func (l *FileLoader) Optional() *FileLoader {
	l.optional = true
	return l
}

// Load implements Loader interface
func (l *FileLoader) Load(target any) error {
	// Defaults first so that keys absent from the file keep them
	if err := tag.ApplyDefaults(target); err != nil {
		return kerrors.Internal("failed to apply defaults").WithCause(err)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || !l.optional {
			return ErrConfigNotFound.WithField("name", l.name).WithCause(err)
		}
	}

	if err := bindEnvTags(l.viper, target); err != nil {
		return err
	}

	if err := l.viper.Unmarshal(target); err != nil {
		return kerrors.Internal("config parse error").WithCause(err)
	}

	if l.validate != nil {
		if err := l.validate.Struct(target); err != nil {
			return kerrors.BadRequest("config validation failed").WithCause(err)
		}
	}

	return nil
}
