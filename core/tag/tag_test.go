package tag

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level string

func (l *level) UnmarshalText(b []byte) error {
	*l = level("lvl:" + string(b))
	return nil
}

type pool struct {
	Size    int           `default:"10"`
	Timeout time.Duration `default:"5s"`
	Ratio   float64       `default:"0.25"`
	Metrics *bool         `default:"true"`
	Logging *bool
	Hosts   []string      `default:"a, b"`
	Level   level         `default:"info"`
}

type settings struct {
	Name  string `default:"dbguard"`
	Pool  pool
	Extra *pool
	skip  int `default:"1"`
}

func TestApplyDefaults(t *testing.T) {
	s := settings{}
	require.NoError(t, ApplyDefaults(&s))

	assert.Equal(t, "dbguard", s.Name)
	assert.Equal(t, 10, s.Pool.Size)
	assert.Equal(t, 5*time.Second, s.Pool.Timeout)
	assert.Equal(t, 0.25, s.Pool.Ratio)
	require.NotNil(t, s.Pool.Metrics)
	assert.True(t, *s.Pool.Metrics)
	assert.Nil(t, s.Pool.Logging)
	assert.Equal(t, []string{"a", "b"}, s.Pool.Hosts)
	assert.Equal(t, level("lvl:info"), s.Pool.Level)
	assert.Nil(t, s.Extra)
	assert.Zero(t, s.skip)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	off := false
	s := settings{Name: "custom", Pool: pool{Size: 3, Metrics: &off}, Extra: &pool{}}
	require.NoError(t, ApplyDefaults(&s))

	assert.Equal(t, "custom", s.Name)
	assert.Equal(t, 3, s.Pool.Size)
	assert.False(t, *s.Pool.Metrics)
	assert.Equal(t, 10, s.Extra.Size, "non-nil nested pointers are walked")
}

func TestApplyDefaultsErrors(t *testing.T) {
	assert.ErrorIs(t, ApplyDefaults(settings{}), ErrTargetMustBePointer)
	assert.ErrorIs(t, ApplyDefaults((*settings)(nil)), ErrTargetMustBePointer)

	bad := struct {
		Port int `default:"http"`
	}{}
	err := ApplyDefaults(&bad)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Port", fe.Path)

	custom := struct {
		Port int `env_default:"8080"`
	}{}
	require.NoError(t, ApplyDefaults(&custom, WithTagName("env_default")))
	assert.Equal(t, 8080, custom.Port)
}
