package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", DefaultConfig(3))
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 3, p.Cap())

	_, err = NewPool("bad", &Config{Capacity: 0})
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)
}

func TestEachBoundsConcurrency(t *testing.T) {
	p, err := NewPool("index", DefaultConfig(2))
	require.NoError(t, err)
	defer p.Release()

	const n = 20
	var running, peak atomic.Int32
	seen := make([]int32, n)
	p.Each(context.Background(), n,
		func(i int) {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&seen[i], 1)
			running.Add(-1)
		},
		func(i int, err error) { t.Errorf("item %d skipped: %v", i, err) },
	)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	for i, c := range seen {
		assert.Equal(t, int32(1), c, "item %d", i)
	}
	st := p.Stats()
	assert.Equal(t, int64(n), st.Submitted)
	assert.Equal(t, int64(n), st.Completed)
	assert.Zero(t, st.Rejected)
}

func TestEachNilPoolRunsInline(t *testing.T) {
	var p *Pool
	var got []int
	p.Each(context.Background(), 3, func(i int) { got = append(got, i) }, func(int, error) {})
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestEachSkipsAfterCancel(t *testing.T) {
	p, err := NewPool("ingest", DefaultConfig(2))
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var skipped []int
	p.Each(ctx, 3,
		func(int) { t.Error("cancelled items must not run") },
		func(i int, err error) {
			assert.ErrorIs(t, err, context.Canceled)
			skipped = append(skipped, i)
		},
	)
	assert.Equal(t, []int{0, 1, 2}, skipped)
}

func TestEachReportsOverload(t *testing.T) {
	cfg := DefaultConfig(1)
	cfg.Nonblocking = true
	p, err := NewPool("ingest", cfg)
	require.NoError(t, err)
	defer p.Release()

	release := make(chan struct{})
	var once sync.Once
	var skipErr error
	p.Each(context.Background(), 2,
		func(int) { <-release },
		func(_ int, err error) {
			skipErr = err
			once.Do(func() { close(release) })
		},
	)

	assert.ErrorIs(t, skipErr, ErrPoolOverload)
	assert.Equal(t, int64(1), p.Stats().Rejected)
}

func TestPoolPanicRecovery(t *testing.T) {
	var caught atomic.Bool
	p, err := NewPool("test", &Config{
		Capacity:       1,
		ExpiryDuration: time.Second,
		PanicHandler:   func(any) { caught.Store(true) },
	})
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() { panic("boom") }))
	assert.Eventually(t, caught.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), p.Stats().Panics)
	assert.Zero(t, p.Stats().Completed)
}

func TestPoolClosed(t *testing.T) {
	p, err := NewPool("test", DefaultConfig(1))
	require.NoError(t, err)
	p.Release()
	p.Release()
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestManager(t *testing.T) {
	m := NewManager()
	p, err := m.Register(IngestPool, DefaultConfig(2))
	require.NoError(t, err)
	assert.Equal(t, "ingest", p.Name())

	_, err = m.Register(IngestPool, DefaultConfig(2))
	assert.ErrorIs(t, err, ErrPoolAlreadyExists)

	_, err = m.Register(IndexPool, DefaultConfig(1))
	require.NoError(t, err)

	m.Shutdown(time.Second)
	m.Shutdown(time.Second)
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)

	_, err = m.Register(IndexPool, DefaultConfig(1))
	assert.ErrorIs(t, err, ErrPoolClosed)
}
