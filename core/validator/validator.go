package validator

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Validator 结构体校验器
type Validator interface {
	// Struct 校验结构体，失败时返回 ValidationErrors
	Struct(s any) error
	// StructCtx 带上下文校验结构体
	StructCtx(ctx context.Context, s any) error
	// Engine 返回底层的 validator 实例
	Engine() *validator.Validate
}

// Validate 全局校验器
var Validate = New()

// Option 校验器选项
type Option func(*options)

type options struct {
	tagName string
	lang    string
}

// WithTagName 设置校验标签名
func WithTagName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.tagName = name
		}
	}
}

// WithLanguage 设置错误消息语言，支持 en 与 zh
func WithLanguage(lang string) Option {
	return func(o *options) {
		if lang != "" {
			o.lang = lang
		}
	}
}

type validatorImpl struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New 创建校验器
//
// 字段名取自 json 标签，并注册 dburl 规则：值须为带协议的地址。
func New(opts ...Option) Validator {
	o := &options{tagName: "validate", lang: "en"}
	for _, opt := range opts {
		opt(o)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName(o.tagName)
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("dburl", isDatabaseURL)

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	trans, found := uni.GetTranslator(o.lang)
	if !found {
		trans, _ = uni.GetTranslator("en")
	}

	var msg string
	switch trans.Locale() {
	case "zh":
		_ = zh_translations.RegisterDefaultTranslations(v, trans)
		msg = "{0}必须是带协议的数据库地址"
	default:
		_ = en_translations.RegisterDefaultTranslations(v, trans)
		msg = "{0} must be a database URL with a scheme"
	}
	_ = v.RegisterTranslation("dburl", trans, func(t ut.Translator) error {
		return t.Add("dburl", msg, true)
	}, func(t ut.Translator, fe validator.FieldError) string {
		s, _ := t.T("dburl", fe.Field())
		return s
	})

	return &validatorImpl{validate: v, trans: trans}
}

// Struct 校验结构体
func (v *validatorImpl) Struct(s any) error {
	return v.StructCtx(context.Background(), s)
}

// StructCtx 带上下文校验结构体
func (v *validatorImpl) StructCtx(ctx context.Context, s any) error {
	if s == nil {
		return errors.New("validation target cannot be nil")
	}
	return v.translate(v.validate.StructCtx(ctx, s))
}

// Engine 返回底层的 validator 实例
func (v *validatorImpl) Engine() *validator.Validate {
	return v.validate
}

func (v *validatorImpl) translate(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}

	out := make(ValidationErrors, 0, len(ves))
	for _, fe := range ves {
		out = append(out, FieldError{
			Namespace: fe.Namespace(),
			Field:     fe.Field(),
			Tag:       fe.Tag(),
			Param:     fe.Param(),
			Value:     fe.Value(),
			Message:   fe.Translate(v.trans),
		})
	}
	return out
}

func jsonName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}

// isDatabaseURL 要求形如 scheme:rest 的地址
func isDatabaseURL(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Opaque != "" || u.Host != "" || u.Path != ""
}
