package log

import (
	"github.com/kochabx/dbguard/log/writer"
)

// Output 日志输出方式
type Output string

const (
	OutputConsole Output = "console"
	OutputFile    Output = "file"
	OutputMulti   Output = "multi"
)

// Config 日志配置
type Config struct {
	Level  string     `json:"level" env:"LOG_LEVEL" default:"info"`
	Output Output     `json:"output" env:"LOG_OUTPUT" default:"console"`
	File   FileConfig `json:"file"`
}

// FileConfig 日志文件配置
type FileConfig struct {
	Filepath         string            `json:"filepath" env:"LOG_FILE_PATH" default:"log"`
	Filename         string            `json:"filename" env:"LOG_FILE_NAME" default:"dbguard"`
	FileExt          string            `json:"file_ext" default:"log"`
	RotateMode       writer.RotateMode `json:"rotate_mode" env:"LOG_ROTATE_MODE"`
	RotatelogsConfig RotatelogsConfig  `json:"rotatelogs_config"`
	LumberjackConfig LumberjackConfig  `json:"lumberjack_config"`
}

// RotatelogsConfig 按时间轮转配置
type RotatelogsConfig struct {
	MaxAge       int `json:"max_age" default:"24"`
	RotationTime int `json:"rotation_time" default:"1"`
}

// LumberjackConfig 按大小轮转配置
type LumberjackConfig struct {
	MaxSize    int  `json:"max_size" default:"100"`
	MaxBackups int  `json:"max_backups" default:"5"`
	MaxAge     int  `json:"max_age" default:"30"`
	Compress   bool `json:"compress"`
}

func (c *FileConfig) toWriterConfig() writer.RotateConfig {
	return writer.RotateConfig{
		Filepath: c.Filepath,
		Filename: c.Filename,
		FileExt:  c.FileExt,
		Mode:     c.RotateMode,
		TimeRotateConfig: writer.TimeRotateConfig{
			MaxAge:       c.RotatelogsConfig.MaxAge,
			RotationTime: c.RotatelogsConfig.RotationTime,
		},
		SizeRotateConfig: writer.SizeRotateConfig{
			MaxSize:    c.LumberjackConfig.MaxSize,
			MaxBackups: c.LumberjackConfig.MaxBackups,
			MaxAge:     c.LumberjackConfig.MaxAge,
			Compress:   c.LumberjackConfig.Compress,
		},
	}
}
