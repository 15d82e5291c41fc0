package log

import (
	"github.com/rs/zerolog"
)

var (
	// G 全局日志实例
	G *Logger
)

func init() {
	G = New()
}

// SetGlobalLogger 设置全局日志记录器
func SetGlobalLogger(logger *Logger) {
	if logger != nil {
		G = logger
	}
}

// SetGlobalLevel 设置全局日志级别
func SetGlobalLevel(level zerolog.Level) {
	G.Logger = G.Logger.Level(level)
}

func Debug() *zerolog.Event {
	return G.Debug()
}

func Info() *zerolog.Event {
	return G.Info()
}

func Warn() *zerolog.Event {
	return G.Warn()
}

// Error 带堆栈
func Error() *zerolog.Event {
	return G.Error().Stack()
}

// Fatal 带堆栈，输出后退出进程
func Fatal() *zerolog.Event {
	return G.Fatal().Stack()
}
