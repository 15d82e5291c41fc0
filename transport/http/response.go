package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/dbguard/errors"
)

// Response 错误响应结构
type Response struct {
	Code     int               `json:"code"`
	Msg      string            `json:"msg,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GinError 按错误码写入响应并中止后续处理
//
// 错误码落在 HTTP 状态码范围内时直接作为状态码，否则使用 500。
func GinError(c *gin.Context, err error) {
	if c == nil || err == nil {
		return
	}

	e := errors.FromError(err)
	status := e.Code
	if http.StatusText(status) == "" {
		status = http.StatusInternalServerError
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		Code:     e.Code,
		Msg:      e.Message,
		Metadata: e.Metadata,
	})
}
