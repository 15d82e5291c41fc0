package writer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Console 创建输出到 stdout 的控制台 writer
func Console() zerolog.ConsoleWriter {
	return ConsoleTo(os.Stdout)
}

// ConsoleTo 创建输出到 w 的控制台 writer，非终端输出时关闭颜色
func ConsoleTo(w io.Writer) zerolog.ConsoleWriter {
	_, isFile := w.(*os.File)
	return zerolog.ConsoleWriter{
		Out:         w,
		NoColor:     !isFile,
		TimeFormat:  time.DateTime,
		FormatLevel: formatLevel,
	}
}

// formatLevel 格式化日志级别显示
func formatLevel(i any) string {
	return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
}
