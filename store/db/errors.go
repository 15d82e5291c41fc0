package db

import "github.com/kochabx/dbguard/errors"

var (
	// ErrConfiguration 配置缺失或非法，构造期致命错误
	ErrConfiguration = errors.Internal("db: invalid configuration")

	// ErrUnsupportedDriver 地址协议无法对应到驱动
	ErrUnsupportedDriver = ErrConfiguration.WithField("reason", "unsupported driver")

	// ErrConnectionTestFailed 初始化探测失败
	ErrConnectionTestFailed = errors.Unavailable("db: connection test failed")

	// ErrConnectionUnavailable 管理器未就绪
	ErrConnectionUnavailable = errors.Unavailable("db: connection unavailable")

	// ErrManagerClosed 管理器已关闭
	ErrManagerClosed = errors.Gone("db: manager closed")
)
