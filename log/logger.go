package log

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/kochabx/dbguard/core/tag"
	"github.com/kochabx/dbguard/log/desensitize"
	"github.com/kochabx/dbguard/log/writer"
)

// Logger 日志记录器
type Logger struct {
	zerolog.Logger
	desensitizeHook *desensitize.Hook
	closer          io.Closer // 用于资源清理
}

// GetDesensitizeHook 获取脱敏钩子
func (l *Logger) GetDesensitizeHook() *desensitize.Hook {
	return l.desensitizeHook
}

// Close 关闭日志记录器，释放资源
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func init() {
	zerolog.TimeFieldFormat = time.DateTime
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// NewWriter 创建输出到 w 的 Logger
//
// 选项先收集配置，设置了脱敏钩子时包装 w 之后再构建 zerolog.Logger。
func NewWriter(w io.Writer, opts ...Option) *Logger {
	cfg := &options{level: zerolog.TraceLevel}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.hook != nil {
		w = desensitize.NewWriter(w, cfg.hook)
	}

	ctx := zerolog.New(w).Level(cfg.level).With().Timestamp()
	for k, v := range cfg.fields {
		ctx = ctx.Str(k, v)
	}
	if cfg.caller {
		ctx = ctx.CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + cfg.callerSkip)
	}

	return &Logger{
		Logger:          ctx.Logger(),
		desensitizeHook: cfg.hook,
	}
}

// New 创建输出到控制台的 Logger
func New(opts ...Option) *Logger {
	return NewWriter(writer.Console(), opts...)
}

// NewFile 创建文件输出的 Logger
func NewFile(c FileConfig, opts ...Option) (*Logger, error) {
	w, err := fileWriter(&c)
	if err != nil {
		return nil, err
	}

	logger := NewWriter(w, opts...)
	if closer, ok := w.(io.Closer); ok {
		logger.closer = closer
	}
	return logger, nil
}

// NewMulti 创建同时输出到文件和控制台的 Logger
func NewMulti(c FileConfig, opts ...Option) (*Logger, error) {
	fw, err := fileWriter(&c)
	if err != nil {
		return nil, err
	}

	logger := NewWriter(zerolog.MultiLevelWriter(fw, writer.Console()), opts...)
	if closer, ok := fw.(io.Closer); ok {
		logger.closer = closer
	}
	return logger, nil
}

// NewFromConfig 按 Config 选择输出方式
func NewFromConfig(c Config, opts ...Option) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	opts = append([]Option{WithLevel(level)}, opts...)

	switch c.Output {
	case OutputConsole:
		return New(opts...), nil
	case OutputFile:
		return NewFile(c.File, opts...)
	case OutputMulti:
		return NewMulti(c.File, opts...)
	default:
		return nil, fmt.Errorf("unsupported log output %q", c.Output)
	}
}

func fileWriter(c *FileConfig) (io.Writer, error) {
	if err := tag.ApplyDefaults(c); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	w, err := writer.File(c.toWriterConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create file writer: %w", err)
	}
	return w, nil
}
