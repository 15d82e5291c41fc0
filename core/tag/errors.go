package tag

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrTargetMustBePointer = errors.New("target must be a non-nil pointer to struct")
	ErrUnsupportedType     = errors.New("unsupported type")
)

// FieldError reports the field whose default could not be applied
type FieldError struct {
	Path  string
	Kind  reflect.Kind
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q (%s) default %q: %v", e.Path, e.Kind, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
