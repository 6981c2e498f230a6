// Package middleware provides middleware configuration options.
package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/gregorizeidler-cw/RegRAG/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 中间件名称常量，也是默认的应用顺序。
const (
	MiddlewareRecovery  = "recovery"
	MiddlewareRequestID = "request-id"
	MiddlewareLogger    = "logger"
	MiddlewareTimeout   = "timeout"
)

// DefaultOrder recovery 最先执行，request-id 在 logger 之前以便日志带上 ID。
var DefaultOrder = []string{MiddlewareRecovery, MiddlewareRequestID, MiddlewareLogger, MiddlewareTimeout}

// RecoveryOptions defines recovery middleware options.
type RecoveryOptions struct {
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// RequestIDOptions defines request ID middleware options.
type RequestIDOptions struct {
	Header string `json:"header" mapstructure:"header"`
	// GeneratorType 支持 uuid (默认) 与 ulid。
	GeneratorType string `json:"generator-type" mapstructure:"generator-type"`
}

// LoggerOptions defines logger middleware options.
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// TimeoutOptions defines timeout middleware options. Timeout 为 0 时不启用。
type TimeoutOptions struct {
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	SkipPaths []string      `json:"skip-paths" mapstructure:"skip-paths"`
}

// HealthOptions defines health check options.
type HealthOptions struct {
	Path          string `json:"path" mapstructure:"path"`
	LivenessPath  string `json:"liveness-path" mapstructure:"liveness-path"`
	ReadinessPath string `json:"readiness-path" mapstructure:"readiness-path"`
}

// VersionOptions contains version endpoint configuration.
type VersionOptions struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
	// HideDetails hides build details (commit hash, build date).
	HideDetails bool `json:"hide-details" mapstructure:"hide-details"`
}

// Options HTTP 中间件配置。
type Options struct {
	// Middleware 指定启用的中间件及其顺序，为空时使用 DefaultOrder。
	Middleware []string `json:"middleware" mapstructure:"middleware"`

	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
	Timeout   *TimeoutOptions   `json:"timeout" mapstructure:"timeout"`
	Health    *HealthOptions    `json:"health" mapstructure:"health"`
	Version   *VersionOptions   `json:"version" mapstructure:"version"`
}

// NewOptions 创建默认中间件选项。
func NewOptions() *Options {
	return &Options{
		Middleware: append([]string(nil), DefaultOrder...),
		Recovery:   &RecoveryOptions{},
		RequestID: &RequestIDOptions{
			Header:        "X-Request-ID",
			GeneratorType: "uuid",
		},
		Logger: &LoggerOptions{
			SkipPaths: []string{"/health", "/ready", "/live", "/metrics"},
		},
		Timeout: &TimeoutOptions{
			Timeout:   150 * time.Second,
			SkipPaths: []string{"/api/v1/compliance/ingest"},
		},
		Health: &HealthOptions{
			Path:          "/health",
			LivenessPath:  "/live",
			ReadinessPath: "/ready",
		},
		Version: &VersionOptions{
			Enabled: true,
			Path:    "/version",
		},
	}
}

// IsEnabled 判断中间件是否在启用列表中。
func (o *Options) IsEnabled(name string) bool {
	for _, m := range o.Order() {
		if m == name {
			return true
		}
	}
	return false
}

// Order 返回中间件应用顺序。
func (o *Options) Order() []string {
	if len(o.Middleware) == 0 {
		return DefaultOrder
	}
	return o.Middleware
}

// AddFlags adds flags for middleware options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "middleware."
	fs.StringSliceVar(&o.Middleware, p+"order", o.Middleware, "Enabled middleware in application order.")
	fs.BoolVar(&o.Recovery.EnableStackTrace, p+"recovery.enable-stack-trace", o.Recovery.EnableStackTrace, "Include stack traces in panic responses (ignored in production).")
	fs.StringVar(&o.RequestID.Header, p+"request-id.header", o.RequestID.Header, "Request ID header name.")
	fs.StringVar(&o.RequestID.GeneratorType, p+"request-id.generator", o.RequestID.GeneratorType, "Request ID generator: uuid or ulid.")
	fs.StringSliceVar(&o.Logger.SkipPaths, p+"logger.skip-paths", o.Logger.SkipPaths, "Paths to skip request logging.")
	fs.DurationVar(&o.Timeout.Timeout, p+"timeout.timeout", o.Timeout.Timeout, "Per-request handling timeout.")
	fs.StringSliceVar(&o.Timeout.SkipPaths, p+"timeout.skip-paths", o.Timeout.SkipPaths, "Paths without a request timeout.")
	fs.StringVar(&o.Health.Path, p+"health.path", o.Health.Path, "Health check endpoint path.")
	fs.StringVar(&o.Health.LivenessPath, p+"health.liveness-path", o.Health.LivenessPath, "Liveness probe path.")
	fs.StringVar(&o.Health.ReadinessPath, p+"health.readiness-path", o.Health.ReadinessPath, "Readiness probe path.")
	fs.BoolVar(&o.Version.Enabled, p+"version.enabled", o.Version.Enabled, "Enable version endpoint.")
	fs.StringVar(&o.Version.Path, p+"version.path", o.Version.Path, "Version endpoint path.")
	fs.BoolVar(&o.Version.HideDetails, p+"version.hide-details", o.Version.HideDetails, "Hide build details in version response.")
}

// Complete fills nil sub-options with defaults.
func (o *Options) Complete() error {
	d := NewOptions()
	if o.Recovery == nil {
		o.Recovery = d.Recovery
	}
	if o.RequestID == nil {
		o.RequestID = d.RequestID
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.Timeout == nil {
		o.Timeout = d.Timeout
	}
	if o.Health == nil {
		o.Health = d.Health
	}
	if o.Version == nil {
		o.Version = d.Version
	}
	if o.RequestID.GeneratorType == "" {
		o.RequestID.GeneratorType = "uuid"
	}
	return nil
}

// Validate validates the middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	known := map[string]bool{}
	for _, n := range DefaultOrder {
		known[n] = true
	}
	for _, n := range o.Middleware {
		if !known[n] {
			errs = append(errs, fmt.Errorf("middleware.order: unknown middleware %q (known: %s)", n, strings.Join(DefaultOrder, ", ")))
		}
	}
	if o.RequestID != nil {
		if o.RequestID.Header == "" {
			errs = append(errs, errors.New("middleware.request-id.header is required"))
		}
		switch o.RequestID.GeneratorType {
		case "", "uuid", "ulid":
		default:
			errs = append(errs, errors.New("middleware.request-id.generator must be 'uuid' or 'ulid'"))
		}
	}
	if o.Timeout != nil && o.Timeout.Timeout < 0 {
		errs = append(errs, errors.New("middleware.timeout.timeout must not be negative"))
	}
	if o.Version != nil && o.Version.Enabled && !strings.HasPrefix(o.Version.Path, "/") {
		errs = append(errs, errors.New("middleware.version.path must start with '/'"))
	}
	return errs
}
