package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultPoolSize       = 4
	DefaultAcquireTimeout = 5 * time.Second
)

var (
	ErrPoolClosed     = errors.New("pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for available session")
)

// Pool hands out a fixed set of model sessions. ONNX sessions own their
// input and output tensors and are not safe for concurrent Run calls, so
// each in-flight inference holds one session exclusively.
type Pool[T any] struct {
	items   chan T
	size    int
	timeout time.Duration
	destroy func(T)

	mu     sync.Mutex
	closed bool
}

// NewPool creates size items with newFn. If any fails, the ones already
// created are destroyed.
func NewPool[T any](size int, timeout time.Duration, newFn func() (T, error), destroy func(T)) (*Pool[T], error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	p := &Pool[T]{
		items:   make(chan T, size),
		size:    size,
		timeout: timeout,
		destroy: destroy,
	}

	for i := 0; i < size; i++ {
		item, err := newFn()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("initialize session %d: %w", i, err)
		}
		p.items <- item
	}

	return p, nil
}

// Acquire blocks until an item is free, the acquire timeout elapses or ctx ends.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case item, ok := <-p.items:
		if !ok {
			return zero, ErrPoolClosed
		}
		return item, nil
	case <-timer.C:
		return zero, ErrAcquireTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Release returns item to the pool. After Close it is destroyed instead.
func (p *Pool[T]) Release(item T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		if p.destroy != nil {
			p.destroy(item)
		}
		return
	}
	p.items <- item
}

// Close destroys idle items. Items still checked out are destroyed on Release.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.items)

	for item := range p.items {
		if p.destroy != nil {
			p.destroy(item)
		}
	}
}

// Size returns the number of items the pool was built with.
func (p *Pool[T]) Size() int {
	return p.size
}
