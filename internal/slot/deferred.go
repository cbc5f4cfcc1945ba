package slot

import (
	"sync"
	"sync/atomic"
)

// Lazy is a value computed on first successful Get and cached afterwards.
// Concurrent first reads run compute once. A failed computation is not
// cached, so the next Get runs it again. BindLazy wraps one in a slot.
type Lazy[T any] struct {
	mu      sync.Mutex
	compute func() (T, error)
	value   T
	done    atomic.Bool
}

// NewLazy returns a Lazy that will call compute on first Get.
func NewLazy[T any](compute func() (T, error)) *Lazy[T] {
	return &Lazy[T]{compute: compute}
}

// Get returns the cached value, computing it first if needed.
func (l *Lazy[T]) Get() (T, error) {
	if l.done.Load() {
		return l.value, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done.Load() {
		return l.value, nil
	}

	v, err := l.compute()
	if err != nil {
		var zero T
		return zero, err
	}
	l.value = v
	l.compute = nil
	l.done.Store(true)
	return v, nil
}

// Initialized reports whether the value has been computed.
func (l *Lazy[T]) Initialized() bool {
	return l.done.Load()
}
