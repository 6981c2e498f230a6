package middleware

import (
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	mwopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/middleware"
)

// HealthStatus represents the health status.
type HealthStatus string

const (
	HealthStatusUp   HealthStatus = "UP"
	HealthStatusDown HealthStatus = "DOWN"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
	Version string                 `json:"version,omitempty"`
}

// CheckResult represents an individual health check result.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthChecker is a function that performs a health check.
type HealthChecker func() error

// HealthManager manages health checks. 每个 Server 持有自己的实例。
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	ready    bool
	version  string
}

// NewHealthManager creates a new health manager.
func NewHealthManager() *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version.Get().GitVersion,
	}
}

// RegisterChecker registers a health checker.
func (h *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// SetReady sets the readiness status.
func (h *HealthManager) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the readiness status.
func (h *HealthManager) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Check performs all health checks.
func (h *HealthManager) Check() HealthResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := HealthResponse{Status: HealthStatusUp, Version: h.version}
	if len(h.checkers) == 0 {
		return resp
	}

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	resp.Checks = make(map[string]CheckResult, len(names))
	for _, name := range names {
		if err := h.checkers[name](); err != nil {
			resp.Status = HealthStatusDown
			resp.Checks[name] = CheckResult{Status: HealthStatusDown, Message: err.Error()}
			continue
		}
		resp.Checks[name] = CheckResult{Status: HealthStatusUp}
	}
	return resp
}

// RegisterHealthRoutes 注册 health / liveness / readiness 端点。
func RegisterHealthRoutes(engine *gin.Engine, opts mwopts.HealthOptions, manager *HealthManager) {
	if opts.Path != "" {
		engine.GET(opts.Path, func(c *gin.Context) {
			writeHealth(c, manager.Check())
		})
	}

	// Liveness probe - always returns OK if the process is running
	if opts.LivenessPath != "" {
		engine.GET(opts.LivenessPath, func(c *gin.Context) {
			c.JSON(http.StatusOK, HealthResponse{Status: HealthStatusUp})
		})
	}

	if opts.ReadinessPath != "" {
		engine.GET(opts.ReadinessPath, func(c *gin.Context) {
			if !manager.IsReady() {
				c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: HealthStatusDown})
				return
			}
			writeHealth(c, manager.Check())
		})
	}
}

func writeHealth(c *gin.Context, resp HealthResponse) {
	status := http.StatusOK
	if resp.Status == HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	GitVersion   string `json:"git_version"`
	GitCommit    string `json:"git_commit,omitempty"`
	GitTreeState string `json:"git_tree_state,omitempty"`
	BuildDate    string `json:"build_date,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

// RegisterVersionRoutes registers the version endpoint.
func RegisterVersionRoutes(engine *gin.Engine, opts mwopts.VersionOptions) {
	if !opts.Enabled {
		return
	}
	path := opts.Path
	if path == "" {
		path = "/version"
	}

	engine.GET(path, func(c *gin.Context) {
		info := version.Get()
		resp := VersionResponse{GitVersion: info.GitVersion}
		if !opts.HideDetails {
			resp.GitCommit = info.GitCommit
			resp.GitTreeState = info.GitTreeState
			resp.BuildDate = info.BuildDate
			resp.GoVersion = info.GoVersion
			resp.Platform = info.Platform
		}
		c.JSON(http.StatusOK, resp)
	})
}
