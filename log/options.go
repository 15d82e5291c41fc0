package log

import (
	"github.com/rs/zerolog"

	"github.com/kochabx/dbguard/log/desensitize"
)

// Option Logger 选项函数
type Option func(*options)

type options struct {
	level      zerolog.Level
	caller     bool
	callerSkip int
	hook       *desensitize.Hook
	fields     map[string]string
}

// WithLevel 设置日志级别
func WithLevel(level zerolog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithCaller 记录调用位置
func WithCaller() Option {
	return func(o *options) {
		o.caller = true
	}
}

// WithCallerSkip 记录调用位置并额外跳过 skip 帧
func WithCallerSkip(skip int) Option {
	return func(o *options) {
		o.caller = true
		o.callerSkip = skip
	}
}

// WithDesensitize 设置脱敏钩子
func WithDesensitize(hook *desensitize.Hook) Option {
	return func(o *options) {
		o.hook = hook
	}
}

// WithField 为每条日志附加固定字段
func WithField(key, value string) Option {
	return func(o *options) {
		if o.fields == nil {
			o.fields = make(map[string]string)
		}
		o.fields[key] = value
	}
}
