package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	httpopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/http"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/json"
)

type fakeRunnable struct {
	name     string
	startErr error

	mu      sync.Mutex
	started bool
	stopped bool
}

func (f *fakeRunnable) Name() string { return f.name }

func (f *fakeRunnable) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeRunnable) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func testHTTPOptions() *httpopts.Options {
	opts := httpopts.NewOptions()
	opts.Addr = "127.0.0.1:0"
	opts.Mode = gin.TestMode
	return opts
}

func TestHTTPServerNoRoute(t *testing.T) {
	s := NewHTTPServer(testHTTPOptions(), nil)

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(pkgerrors.ErrRouteNotFound.Code), body["code"])
}

func TestHTTPServerStartStop(t *testing.T) {
	s := NewHTTPServer(testHTTPOptions(), nil)
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.Health().IsReady())
	assert.Error(t, s.Start(ctx), "second start must fail")

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", s.Addr()))
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(b))

	resp, err = http.Get(fmt.Sprintf("http://%s/ready", s.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.Health().IsReady())
	assert.NoError(t, s.Stop(ctx))
}

func TestManagerRollbackOnStartFailure(t *testing.T) {
	ok := &fakeRunnable{name: "indexer"}
	bad := &fakeRunnable{name: "broken", startErr: errors.New("boom")}

	m := NewManager(WithHTTPOptions(testHTTPOptions()))
	m.AddServer(ok)
	m.AddServer(bad)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.True(t, ok.stopped)

	// 回滚后可以重新启动。
	m2 := NewManager(WithHTTPOptions(testHTTPOptions()))
	m2.AddServer(ok)
	require.NoError(t, m2.Start(context.Background()))
	require.NoError(t, m2.Stop(context.Background()))
}

func TestManagerRun(t *testing.T) {
	worker := &fakeRunnable{name: "worker"}
	m := NewManager(WithHTTPOptions(testHTTPOptions()), WithShutdownTimeout(time.Second))
	m.AddServer(worker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		worker.mu.Lock()
		defer worker.mu.Unlock()
		return worker.started
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, worker.stopped)
	assert.False(t, m.HTTPServer().Health().IsReady())
}
