package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/kochabx/dbguard/core/tag"
	"github.com/kochabx/dbguard/core/validator"
	"github.com/kochabx/dbguard/errors"
)

// EnvTagName names the struct tag that maps a field to an environment variable
const EnvTagName = "env"

// EnvLoader loads configuration from environment variables named by `env` tags.
// Unset variables leave the `default` tag value in place.
type EnvLoader struct {
	viper    *viper.Viper
	validate validator.Validator
}

// NewEnvLoader creates a new environment loader
func NewEnvLoader(v *viper.Viper, validate validator.Validator) *EnvLoader {
	return &EnvLoader{
		viper:    v,
		validate: validate,
	}
}

// Load implements Loader interface
func (l *EnvLoader) Load(target any) error {
	if err := tag.ApplyDefaults(target); err != nil {
		return errors.Internal("failed to apply defaults").WithCause(err)
	}

	if err := bindEnvTags(l.viper, target); err != nil {
		return err
	}

	if err := l.viper.Unmarshal(target); err != nil {
		return errors.Internal("config parse error").WithCause(err)
	}

	if l.validate != nil {
		if err := l.validate.Struct(target); err != nil {
			return errors.BadRequest("config validation failed").WithCause(err)
		}
	}

	return nil
}

// bindEnvTags walks target's struct fields and binds every `env` tag to the
// viper key the field unmarshals from
func bindEnvTags(v *viper.Viper, target any) error {
	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return errors.Internal("config target must be a pointer to struct")
	}
	return bindStruct(v, t.Elem(), "")
}

func bindStruct(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		key := prefix + fieldKey(field)

		if env := field.Tag.Get(EnvTagName); env != "" {
			if err := v.BindEnv(key, env); err != nil {
				return errors.Internal("bind env %s", env).WithCause(err)
			}
			continue
		}

		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			if err := bindStruct(v, ft, key+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

// fieldKey mirrors how mapstructure names a field
func fieldKey(field reflect.StructField) string {
	if name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ","); name != "" {
		return strings.ToLower(name)
	}
	return strings.ToLower(field.Name)
}
