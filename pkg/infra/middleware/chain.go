package middleware

import (
	"github.com/gin-gonic/gin"

	mwopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/middleware"
)

// Chain 按 opts.Order() 构造中间件链，未知名称被忽略 (Validate 会提前报错)。
func Chain(opts *mwopts.Options) []gin.HandlerFunc {
	if opts == nil {
		opts = mwopts.NewOptions()
	}
	_ = opts.Complete()

	chain := make([]gin.HandlerFunc, 0, len(opts.Order()))
	for _, name := range opts.Order() {
		switch name {
		case mwopts.MiddlewareRecovery:
			chain = append(chain, RecoveryWithOptions(*opts.Recovery, nil))
		case mwopts.MiddlewareRequestID:
			chain = append(chain, RequestIDWithOptions(*opts.RequestID, nil))
		case mwopts.MiddlewareLogger:
			chain = append(chain, LoggerWithOptions(*opts.Logger))
		case mwopts.MiddlewareTimeout:
			chain = append(chain, TimeoutWithOptions(*opts.Timeout))
		}
	}
	return chain
}
