package db

import (
	"time"

	"gorm.io/gorm"

	"github.com/kochabx/dbguard/log"
)

// Option 管理器配置选项
type Option func(*managerOptions)

// DialectorFunc 根据连接目标构造 GORM Dialector
type DialectorFunc func(Target) (gorm.Dialector, error)

// managerOptions 管理器内部选项
type managerOptions struct {
	// 日志
	logger *log.Logger

	// 插件
	plugins []gorm.Plugin

	// 驱动
	dialector DialectorFunc

	// 健康分级
	strictHealth bool

	// 重试
	retryStrategy RetryStrategy

	// 遥测
	namespace   string
	historySize int

	now func() time.Time
}

// defaultOptions 返回默认选项
func defaultOptions() *managerOptions {
	return &managerOptions{
		namespace:   DefaultNamespace,
		historySize: DefaultHistorySize,
		now:         time.Now,
	}
}

// ==================== 日志选项 ====================

// WithLogger 设置日志记录器，默认使用 log.G
func WithLogger(l *log.Logger) Option {
	return func(o *managerOptions) {
		o.logger = l
	}
}

// ==================== 连接选项 ====================

// WithPlugins 添加额外的 GORM 插件，每次建立连接都会重新安装
func WithPlugins(plugins ...gorm.Plugin) Option {
	return func(o *managerOptions) {
		o.plugins = append(o.plugins, plugins...)
	}
}

// WithDialector 替换按协议选择驱动的默认逻辑
func WithDialector(fn DialectorFunc) Option {
	return func(o *managerOptions) {
		o.dialector = fn
	}
}

// ==================== 健康检查选项 ====================

// WithStrictHealthClassification 延迟超过 5s 或错误率超过 25% 时判定为 unhealthy
func WithStrictHealthClassification() Option {
	return func(o *managerOptions) {
		o.strictHealth = true
	}
}

// ==================== 重试选项 ====================

// WithRetryStrategy 替换默认的线性退避
func WithRetryStrategy(s RetryStrategy) Option {
	return func(o *managerOptions) {
		o.retryStrategy = s
	}
}

// ==================== 可观测性选项 ====================

// WithNamespace 设置 Prometheus 指标命名空间
func WithNamespace(ns string) Option {
	return func(o *managerOptions) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithHistorySize 设置查询记录容量
func WithHistorySize(n int) Option {
	return func(o *managerOptions) {
		if n > 0 {
			o.historySize = n
		}
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) {
		if now != nil {
			o.now = now
		}
	}
}
