package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	httpopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/http"
	mwopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/middleware"
)

// Options 是 Manager 的配置。
type Options struct {
	HTTP            *httpopts.Options
	Middleware      *mwopts.Options
	ShutdownTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Options)

// WithHTTPOptions sets the HTTP server options.
func WithHTTPOptions(opts *httpopts.Options) Option {
	return func(o *Options) { o.HTTP = opts }
}

// WithMiddleware sets the middleware options.
func WithMiddleware(opts *mwopts.Options) Option {
	return func(o *Options) { o.Middleware = opts }
}

// WithShutdownTimeout overrides the graceful shutdown timeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) { o.ShutdownTimeout = d }
}

// Manager 管理 HTTP 服务与附加的 Runnable (例如后台 worker) 的统一生命周期。
type Manager struct {
	opts    *Options
	http    *HTTPServer
	servers []Runnable
	mu      sync.Mutex
	started bool
}

// NewManager creates a new server manager with the given options.
func NewManager(opts ...Option) *Manager {
	o := &Options{
		HTTP:       httpopts.NewOptions(),
		Middleware: mwopts.NewOptions(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = o.HTTP.ShutdownTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 15 * time.Second
	}

	return &Manager{
		opts: o,
		http: NewHTTPServer(o.HTTP, o.Middleware),
	}
}

// HTTPServer returns the HTTP server.
func (m *Manager) HTTPServer() *HTTPServer {
	return m.http
}

// AddServer adds a custom server to the manager.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// Start starts all servers. 任一失败时回滚已启动的服务。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("server manager already started")
	}
	m.started = true
	servers := append([]Runnable{}, m.servers...)
	m.mu.Unlock()

	if err := m.http.Start(ctx); err != nil {
		m.setStarted(false)
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	logger.Infow("HTTP server started", "addr", m.http.Addr())

	for i, server := range servers {
		if err := server.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = servers[j].Stop(ctx)
			}
			_ = m.http.Stop(ctx)
			m.setStarted(false)
			return fmt.Errorf("failed to start server %s: %w", server.Name(), err)
		}
		logger.Infow("Custom server started", "name", server.Name())
	}
	return nil
}

// Stop stops all servers gracefully.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	servers := append([]Runnable{}, m.servers...)
	m.mu.Unlock()

	var errs []error

	// Stop the HTTP server first so no new requests reach the workers.
	if err := m.http.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
	}
	logger.Info("HTTP server stopped")

	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", servers[i].Name(), err))
		}
	}

	return utilerrors.NewAggregate(errs)
}

// Run 启动所有服务并阻塞直到 ctx 结束，随后在 ShutdownTimeout 内优雅关闭。
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.opts.ShutdownTimeout)
	defer cancel()
	return m.Stop(shutdownCtx)
}

func (m *Manager) setStarted(v bool) {
	m.mu.Lock()
	m.started = v
	m.mu.Unlock()
}
