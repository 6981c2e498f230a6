package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/httputils"
	mwopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/middleware"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/id"
)

// HeaderXRequestID is the default header name for request ID.
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns a middleware that adds a unique request ID to each request.
func RequestID() gin.HandlerFunc {
	return RequestIDWithOptions(mwopts.RequestIDOptions{}, nil)
}

// RequestIDWithOptions 复用请求头中的 ID，没有时按 GeneratorType 生成。
// ID 写入响应头、gin.Context (httputils.RequestIDKey) 和 request context。
func RequestIDWithOptions(opts mwopts.RequestIDOptions, generator func() string) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = HeaderXRequestID
	}
	if generator == nil {
		t := id.TypeUUID
		if opts.GeneratorType == string(id.TypeULID) {
			t = id.TypeULID
		}
		generator = func() string { return id.New(t) }
	}

	return func(c *gin.Context) {
		rid := c.GetHeader(header)
		if rid == "" {
			rid = generator()
		}
		c.Header(header, rid)
		c.Set(httputils.RequestIDKey, rid)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}
