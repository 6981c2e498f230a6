// Package middleware provides the gin middleware chain of the HTTP server.
package middleware

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/httputils"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	mwopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/middleware"
)

// PanicHandler 定义 panic 处理器类型。
type PanicHandler func(c *gin.Context, err interface{}, stack []byte)

// Recovery returns a middleware that recovers from panics with default options.
func Recovery() gin.HandlerFunc {
	return RecoveryWithOptions(mwopts.RecoveryOptions{}, nil)
}

// RecoveryWithOptions 捕获 panic，记录完整堆栈并返回 ErrPanic。
// 生产环境 (APP_ENV/GO_ENV=production) 下即使开启 EnableStackTrace 也不把堆栈返回给客户端。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	withStack := opts.EnableStackTrace
	if withStack && isProductionEnvironment() {
		logger.Warn("Stack trace is enabled but running in production environment, it will only be logged")
		withStack = false
	}

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Errorw("panic recovered",
					"panic", r,
					"stack_trace", string(stack),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"request_id", c.GetString(httputils.RequestIDKey),
				)
				if onPanic != nil {
					onPanic(c, r, stack)
				}

				msg := fmt.Sprintf("panic: %v", r)
				if withStack {
					msg = fmt.Sprintf("panic: %v\n%s", r, stack)
				}
				httputils.WriteResponse(c, errors.ErrPanic.WithMessage(msg), nil)
				c.Abort()
			}
		}()
		c.Next()
	}
}

func isProductionEnvironment() bool {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	switch env {
	case "production", "prod", "PRODUCTION", "PROD":
		return true
	default:
		return false
	}
}
