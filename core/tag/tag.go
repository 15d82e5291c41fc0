package tag

import (
	"encoding"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// DefaultTagName is the struct tag read by ApplyDefaults
const DefaultTagName = "default"

// Option configures ApplyDefaults
type Option func(*walker)

// WithTagName reads defaults from a tag other than `default`
func WithTagName(name string) Option {
	return func(w *walker) {
		if name != "" {
			w.tagName = name
		}
	}
}

// ApplyDefaults fills zero-valued fields of target from their struct tags.
// Nested structs are walked; nil pointers to scalars are allocated only when
// a default is present, so an explicit pointer value is never overwritten.
//
//	type Pool struct {
//	    Size    int           `default:"10"`
//	    Timeout time.Duration `default:"5s"`
//	    Metrics *bool         `default:"true"`
//	}
func ApplyDefaults(target any, opts ...Option) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrTargetMustBePointer
	}

	w := &walker{tagName: DefaultTagName}
	for _, opt := range opts {
		opt(w)
	}
	return w.walk(v.Elem(), "")
}

type walker struct {
	tagName string
}

func (w *walker) walk(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}

		if err := w.field(fv, field.Tag.Get(w.tagName), path); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) field(fv reflect.Value, def, path string) error {
	switch {
	case fv.Kind() == reflect.Struct && !isText(fv):
		return w.walk(fv, path)

	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
		if fv.IsNil() {
			return nil
		}
		return w.walk(fv.Elem(), path)

	case def == "" || !fv.IsZero():
		return nil

	case fv.Kind() == reflect.Pointer:
		elem := reflect.New(fv.Type().Elem())
		if err := set(elem.Elem(), def); err != nil {
			return &FieldError{Path: path, Kind: fv.Kind(), Value: def, Err: err}
		}
		fv.Set(elem)
		return nil

	default:
		if err := set(fv, def); err != nil {
			return &FieldError{Path: path, Kind: fv.Kind(), Value: def, Err: err}
		}
		return nil
	}
}

func isText(v reflect.Value) bool {
	return v.CanAddr() && v.Addr().Type().Implements(reflect.TypeFor[encoding.TextUnmarshaler]())
}

// set parses s into v according to v's type
func set(v reflect.Value, s string) error {
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(s))
		}
	}

	s = strings.TrimSpace(s)
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Type() == reflect.TypeFor[time.Duration]() {
			d, err := time.ParseDuration(s)
			if err != nil {
				return err
			}
			v.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Slice:
		parts := strings.Split(s, ",")
		slice := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := set(slice.Index(i), part); err != nil {
				return err
			}
		}
		v.Set(slice)
	default:
		return ErrUnsupportedType
	}
	return nil
}
