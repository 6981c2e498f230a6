// Package pool 基于 ants 提供有界 goroutine 池，摄取和批量索引都通过它限制并发。
package pool

import "errors"

var (
	ErrPoolClosed        = errors.New("pool closed")
	ErrPoolAlreadyExists = errors.New("pool already registered")
	ErrInvalidPoolConfig = errors.New("invalid pool config")
	// ErrPoolOverload 非阻塞池已满。
	ErrPoolOverload = errors.New("pool overload")
)
