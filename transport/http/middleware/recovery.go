package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/dbguard/log"
)

// RecoveryConfig Recovery 中间件配置
type RecoveryConfig struct {
	StackTrace bool        // 是否记录堆栈信息
	Logger     *log.Logger // 为空时使用全局日志
}

// Recovery 捕获处理器 panic，记录日志并返回 500
func Recovery(cfgs ...RecoveryConfig) gin.HandlerFunc {
	cfg := RecoveryConfig{StackTrace: true}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger := cfg.Logger
			if logger == nil {
				logger = log.G
			}
			request, _ := httputil.DumpRequest(c.Request, false)
			err := fmt.Errorf("%v", r)
			if e, ok := r.(error); ok {
				err = e
			}

			// 客户端断开时无法再写响应
			if isBrokenPipe(err) {
				logger.Warn().Err(err).Bytes("request", request).Msg("broken pipe")
				_ = c.Error(err)
				c.Abort()
				return
			}

			event := logger.Error().Err(err).Bytes("request", request)
			if cfg.StackTrace {
				event = event.Bytes("stack", debug.Stack())
			}
			event.Msg("panic recovered")

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code": http.StatusInternalServerError,
				"msg":  http.StatusText(http.StatusInternalServerError),
			})
		}()
		c.Next()
	}
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
