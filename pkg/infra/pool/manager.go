package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// Manager owns the named pools of one process and releases them together.
type Manager struct {
	mu     sync.Mutex
	pools  map[Type]*Pool
	order  []Type
	closed bool
}

func NewManager() *Manager {
	return &Manager{pools: map[Type]*Pool{}}
}

// Register 创建并登记一个池，同一 Type 只能登记一次。
func (m *Manager) Register(typ Type, cfg *Config) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrPoolClosed
	}
	if _, ok := m.pools[typ]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyExists, typ)
	}
	p, err := NewPool(string(typ), cfg)
	if err != nil {
		return nil, err
	}
	m.pools[typ] = p
	m.order = append(m.order, typ)
	return p, nil
}

// Shutdown drains pools in reverse registration order, each bounded by
// timeout. Later Register calls fail with ErrPoolClosed.
func (m *Manager) Shutdown(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for i := len(m.order) - 1; i >= 0; i-- {
		typ := m.order[i]
		if err := m.pools[typ].ReleaseTimeout(timeout); err != nil {
			logger.Warnw("Worker pool release timeout", "name", string(typ), "error", err.Error())
		}
	}
}
