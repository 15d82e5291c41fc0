package middleware

import (
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kochabx/dbguard/log"
)

// LoggerConfig 日志中间件配置
type LoggerConfig struct {
	// Logger 为空时使用全局日志
	Logger *log.Logger
	// HandlerEnabled 是否记录处理器名称
	HandlerEnabled bool
	// SkipPaths 跳过记录的路径列表
	SkipPaths []string
	// Filter 自定义过滤函数，返回 true 跳过
	Filter func(c *gin.Context) bool
}

// DefaultLoggerConfig 默认跳过探活与指标抓取
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// GinLogger 创建默认的 Gin 日志中间件
func GinLogger() gin.HandlerFunc {
	return GinLoggerWithConfig(DefaultLoggerConfig())
}

// GinLoggerWithConfig 根据配置创建 Gin 日志中间件
func GinLoggerWithConfig(config LoggerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if shouldSkipLogging(c, config) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		logger := config.Logger
		if logger == nil {
			logger = log.G
		}

		level := zerolog.InfoLevel
		if c.Writer.Status() >= 500 {
			level = zerolog.WarnLevel
		}
		event := logger.WithLevel(level).
			Int("status", c.Writer.Status()).
			Str("method", c.Request.Method).
			Str("uri", c.Request.RequestURI).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP())

		if config.HandlerEnabled {
			event = event.Str("handler", c.HandlerName())
		}

		if requestId := c.Request.Header.Get("X-Request-Id"); requestId != "" {
			event = event.Str("request_id", requestId)
		}

		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.ByType(gin.ErrorTypePrivate).String())
		}

		event.Send()
	}
}

func shouldSkipLogging(c *gin.Context, config LoggerConfig) bool {
	if config.Filter != nil {
		return config.Filter(c)
	}
	return slices.Contains(config.SkipPaths, c.Request.URL.Path)
}
