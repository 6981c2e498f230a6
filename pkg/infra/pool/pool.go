package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type 池的用途，同时作为池名。
type Type string

const (
	// IngestPool 文档级并发 (加载、归一化、分块、写库)
	IngestPool Type = "ingest"
	// IndexPool embedding 批次并发
	IndexPool Type = "index"
)

// Config 池配置。
type Config struct {
	Capacity       int
	ExpiryDuration time.Duration
	PreAlloc       bool
	// Nonblocking 为 true 时池满直接返回 ErrPoolOverload，否则 Submit 等待空位。
	Nonblocking bool
	// MaxBlockingTasks 阻塞模式下允许排队的提交者数量，0 不限。
	MaxBlockingTasks int
	PanicHandler     func(any)
}

// DefaultConfig 返回阻塞式提交的配置，在途任务数因此受 capacity 约束。
func DefaultConfig(capacity int) *Config {
	if capacity <= 0 {
		capacity = 4
	}
	return &Config{Capacity: capacity, ExpiryDuration: 10 * time.Second}
}

// Pool wraps an ants pool with task counters. A nil *Pool runs work inline.
type Pool struct {
	name string
	ants *ants.Pool

	closeOnce sync.Once
	closed    atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
	waitNs    atomic.Int64
}

// Stats 池统计信息快照。
type Stats struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Running   int    `json:"running"`
	Submitted int64  `json:"submitted"`
	Completed int64  `json:"completed"`
	Rejected  int64  `json:"rejected"`
	Panics    int64  `json:"panics"`
	// AvgWaitMs 任务从提交到开始执行的平均等待。
	AvgWaitMs float64 `json:"avg_wait_ms"`
}

// NewPool 创建池。
func NewPool(name string, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig(0)
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidPoolConfig)
	}

	p := &Pool{name: name}
	onPanic := cfg.PanicHandler
	if onPanic == nil {
		onPanic = func(v any) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", v)
		}
	}
	ap, err := ants.NewPool(cfg.Capacity,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithPreAlloc(cfg.PreAlloc),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks),
		ants.WithPanicHandler(func(v any) {
			p.panics.Add(1)
			onPanic(v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ants pool %s: %w", name, err)
	}
	p.ants = ap

	logger.Infow("Worker pool created", "name", name, "capacity", cfg.Capacity, "nonblocking", cfg.Nonblocking)
	return p, nil
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) Cap() int { return p.ants.Cap() }

// Submit 提交任务。阻塞式池在满载时等待。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	queued := time.Now()
	p.submitted.Add(1)
	err := p.ants.Submit(func() {
		p.waitNs.Add(int64(time.Since(queued)))
		task()
		p.completed.Add(1)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.rejected.Add(1)
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		p.rejected.Add(1)
		return err
	}
}

// Each runs work(i) for i in [0, n) on the pool and waits for all of them.
// Items that could not start, because ctx ended first or the pool refused
// the task, are passed to skip on the caller's goroutine instead.
// work and skip are never both called for the same index.
func (p *Pool) Each(ctx context.Context, n int, work func(i int), skip func(i int, err error)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			skip(i, err)
			continue
		}
		if p == nil {
			work(i)
			continue
		}

		wg.Add(1)
		i := i
		if err := p.Submit(func() {
			defer wg.Done()
			work(i)
		}); err != nil {
			wg.Done()
			skip(i, err)
		}
	}
	wg.Wait()
}

// Release 立即关闭池，不等待在途任务。
func (p *Pool) Release() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.ants.Release()
		logger.Infow("Worker pool released", "name", p.name)
	})
}

// ReleaseTimeout 等待在途任务完成后关闭，直到超时。
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		err = p.ants.ReleaseTimeout(timeout)
	})
	return err
}

// Stats 返回池统计信息快照。
func (p *Pool) Stats() Stats {
	s := Stats{
		Name:      p.name,
		Capacity:  p.ants.Cap(),
		Running:   p.ants.Running(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
	if started := s.Submitted - s.Rejected; started > 0 {
		s.AvgWaitMs = float64(p.waitNs.Load()) / float64(started) / float64(time.Millisecond)
	}
	return s
}
