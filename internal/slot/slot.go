package slot

import (
	"sync"
	"sync/atomic"
)

// Slot is a single named, typed storage location bound to one policy.
//
// A slot is one of three kinds. A stored slot holds a value from
// construction. A late slot holds nothing until its first accepted write.
// A computed slot holds nothing at all: every read derives the value, and
// every write is rejected.
//
// Thread-safety: Read is safe from any goroutine and never blocks on a
// writer. Write serializes with other writes on the same slot.
type Slot[T any] struct {
	host    string
	name    string
	policy  Policy[T]
	initial T
	derive  func() (T, error) // computed slots only

	mu    sync.Mutex        // held for the whole write sequence
	value atomic.Pointer[T] // nil while a late slot is unset
}

// newSlot builds an initialized slot. The initial value passes through the
// policy's Init when the policy is an Initializer, otherwise it is stored as is.
func newSlot[T any](host, name string, initial T, policy Policy[T]) *Slot[T] {
	s := &Slot[T]{host: host, name: name, policy: policy, initial: initial}
	v := initial
	if in, ok := policy.(Initializer[T]); ok {
		v = in.Init(name, initial)
	}
	s.value.Store(&v)
	return s
}

// newLateSlot builds a slot with no value.
func newLateSlot[T any](host, name string, policy Policy[T]) *Slot[T] {
	return &Slot[T]{host: host, name: name, policy: policy}
}

// newComputedSlot builds a read-only slot whose value is derive's result,
// passed through the policy's OnRead.
func newComputedSlot[T any](host, name string, derive func() (T, error), policy Policy[T]) *Slot[T] {
	return &Slot[T]{host: host, name: name, policy: policy, derive: derive}
}

// Name returns the slot name.
func (s *Slot[T]) Name() string {
	return s.name
}

// Initial returns the value the slot was declared with, before Init. It is
// the zero value for late and computed slots.
func (s *Slot[T]) Initial() T {
	return s.initial
}

// ReadOnly reports whether the slot is computed.
func (s *Slot[T]) ReadOnly() bool {
	return s.derive != nil
}

// Initialized reports whether a read would find a value. Computed slots
// always report true; their derive function may still fail.
func (s *Slot[T]) Initialized() bool {
	return s.derive != nil || s.value.Load() != nil
}

// Load returns the current value as seen through the policy's OnRead.
//
// A late slot that has never accepted a write fails with UNINITIALIZED.
// A computed slot returns its derive error.
func (s *Slot[T]) Load() (T, error) {
	var zero T
	if s.derive != nil {
		v, err := s.derive()
		if err != nil {
			return zero, err
		}
		return s.policy.OnRead(s.name, v), nil
	}
	p := s.value.Load()
	if p == nil {
		return zero, newError(ErrCodeUninitialized, s.host, s.name, "read before first write")
	}
	return s.policy.OnRead(s.name, *p), nil
}

// Read is Load without the error. A value that cannot be loaded reads as
// the zero value of T.
func (s *Slot[T]) Read() T {
	v, _ := s.Load()
	return v
}

// Write proposes v. The bound policy decides what is stored.
//
// The first write to a late slot sees the zero value as old. Writes to a
// computed slot are rejected without consulting the policy.
//
// If a commit or reject hook panics, the panic propagates to the caller but
// the value committed before the hook ran stays in place and the slot
// remains writable.
func (s *Slot[T]) Write(v T) Change[T] {
	if s.derive != nil {
		cur := s.Read()
		return Change[T]{Slot: s.name, Old: cur, Proposed: v, New: cur}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var old T
	if p := s.value.Load(); p != nil {
		old = *p
	}
	next, accepted := s.policy.OnWrite(s.name, old, v)

	change := Change[T]{Slot: s.name, Old: old, Proposed: v, New: old, Accepted: accepted}
	if !accepted {
		if r, ok := s.policy.(Rejecter[T]); ok {
			r.OnReject(s.name, old, v)
		}
		return change
	}

	s.value.Store(&next)
	change.New = next

	if c, ok := s.policy.(Committer[T]); ok {
		c.AfterCommit(s.name, old, next)
	}
	return change
}

func (s *Slot[T]) loadAny() (any, error) {
	return s.Load()
}
