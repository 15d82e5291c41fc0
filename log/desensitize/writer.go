package desensitize

import (
	"io"
)

// Writer 包装 writer 以支持脱敏
type Writer struct {
	writer io.Writer
	hook   *Hook
}

// NewWriter 创建脱敏 writer
func NewWriter(writer io.Writer, hook *Hook) *Writer {
	if writer == nil || hook == nil {
		panic("desensitize: writer and hook are required")
	}

	return &Writer{
		writer: writer,
		hook:   hook,
	}
}

// Write 实现 io.Writer 接口
//
// 成功时返回 len(p)，脱敏改变长度不视为短写。
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if w.hook.RuleCount() == 0 {
		return w.writer.Write(p)
	}

	text := string(p)
	masked := w.hook.Desensitize(text)
	if masked == text {
		return w.writer.Write(p)
	}

	if _, err := io.WriteString(w.writer, masked); err != nil {
		return 0, err
	}
	return len(p), nil
}
