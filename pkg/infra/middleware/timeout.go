package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/httputils"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	mwopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/middleware"
)

// TimeoutWithOptions 给请求 context 加截止时间。
// 处理链在同一个 goroutine 中执行，handler 通过 ctx 感知超时；
// 超时后若 handler 尚未写出响应，返回 ErrRequestTimeout。
func TimeoutWithOptions(opts mwopts.TimeoutOptions) gin.HandlerFunc {
	skip := newPathMatcher(opts.SkipPaths)

	return func(c *gin.Context) {
		if opts.Timeout <= 0 || skip(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), opts.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			logger.Warnw("request timed out",
				"path", c.Request.URL.Path,
				"timeout", opts.Timeout.String(),
				"request_id", c.GetString(httputils.RequestIDKey),
			)
			httputils.WriteResponse(c, errors.ErrRequestTimeout, nil)
			c.Abort()
		}
	}
}
