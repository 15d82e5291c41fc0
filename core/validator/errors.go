package validator

import (
	"errors"
	"strings"
)

// FieldError 单个字段的校验失败
type FieldError struct {
	Namespace string `json:"namespace"`
	Field     string `json:"field"`
	Tag       string `json:"tag"`
	Param     string `json:"param,omitempty"`
	Value     any    `json:"value"`
	Message   string `json:"message"`
}

// ValidationErrors 校验失败的字段集合
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, fe := range ve {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Has 是否包含指定字段的错误
func (ve ValidationErrors) Has(field string) bool {
	for _, fe := range ve {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// AsValidationErrors 从错误链中取出 ValidationErrors
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var ve ValidationErrors
	ok := errors.As(err, &ve)
	return ve, ok
}
