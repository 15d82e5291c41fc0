package db

import (
	"gorm.io/gorm/logger"

	"github.com/kochabx/dbguard/log"
)

// gormLogWriter 适配 log.Logger 到 GORM logger.Writer
type gormLogWriter struct {
	logger *log.Logger
}

func newGormLogWriter(l *log.Logger) *gormLogWriter {
	return &gormLogWriter{logger: l}
}

func (w *gormLogWriter) Printf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Info().Str("component", "gorm").Msgf(format, args...)
	}
}

// gormLogLevel 按运行环境决定 GORM 日志级别
func gormLogLevel(cfg Config) logger.LogLevel {
	switch cfg.Environment {
	case EnvProduction:
		return logger.Error
	case EnvTest:
		return logger.Silent
	}
	if cfg.LoggingEnabled() {
		return logger.Info
	}
	return logger.Error
}

func newGormLogger(l *log.Logger, cfg Config) logger.Interface {
	return logger.New(newGormLogWriter(l), logger.Config{
		LogLevel:                  gormLogLevel(cfg),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
