package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/httputils"
	pkgerrors "github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/middleware"
	httpopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/http"
	mwopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/middleware"
)

var _ Runnable = (*HTTPServer)(nil)

// HTTPServer 包装 gin.Engine 与 http.Server。
type HTTPServer struct {
	opts   *httpopts.Options
	mw     *mwopts.Options
	engine *gin.Engine
	health *middleware.HealthManager

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer 创建 HTTP 服务，装配中间件链、404 处理与健康检查路由。
func NewHTTPServer(opts *httpopts.Options, mw *mwopts.Options) *HTTPServer {
	if opts == nil {
		opts = httpopts.NewOptions()
	}
	if mw == nil {
		mw = mwopts.NewOptions()
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	engine := gin.New()
	engine.Use(middleware.Chain(mw)...)
	engine.NoRoute(func(c *gin.Context) {
		httputils.WriteResponse(c, pkgerrors.ErrRouteNotFound.WithMessagef("route %s %s not found", c.Request.Method, c.Request.URL.Path), nil)
	})

	health := middleware.NewHealthManager()
	middleware.RegisterHealthRoutes(engine, *mw.Health, health)
	middleware.RegisterVersionRoutes(engine, *mw.Version)

	return &HTTPServer{
		opts:   opts,
		mw:     mw,
		engine: engine,
		health: health,
	}
}

// Name returns the server name.
func (s *HTTPServer) Name() string { return "http" }

// Engine 返回底层 gin.Engine，用于注册业务路由。
func (s *HTTPServer) Engine() *gin.Engine { return s.engine }

// Health returns the health manager backing /health and /ready.
func (s *HTTPServer) Health() *middleware.HealthManager { return s.health }

// Addr 返回实际监听地址；未启动时返回配置地址。
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start 同步绑定端口，再在后台 goroutine 中提供服务。
func (s *HTTPServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("http server already started")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}
	s.server = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server stopped unexpectedly", "addr", ln.Addr().String(), "error", err.Error())
			s.health.SetReady(false)
		}
	}()

	s.health.SetReady(true)
	return nil
}

// Stop gracefully shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.health.SetReady(false)
	return srv.Shutdown(ctx)
}
