package slot

import (
	"io"
	"log/slog"
	"reflect"
)

// Host owns a fixed set of named slots.
//
// Bindings are made once in NewHost and never change afterwards, so a Host
// is safe for concurrent use: lookups read an immutable map, and each slot
// guards its own writes.
type Host struct {
	name   string
	order  []string
	slots  map[string]any // name -> *Slot[T]
	logger *slog.Logger
}

// Option configures a Host under construction.
type Option func(*hostConfig)

type hostConfig struct {
	logger   *slog.Logger
	bindings []pendingBinding
}

type pendingBinding struct {
	name  string
	build func(h *Host) (any, error)
}

func bind(name string, hasPolicy bool, build func(h *Host) any) Option {
	return func(c *hostConfig) {
		c.bindings = append(c.bindings, pendingBinding{
			name: name,
			build: func(h *Host) (any, error) {
				if !hasPolicy {
					return nil, newError(ErrCodeNilPolicy, "", name, "slot bound without a policy")
				}
				return build(h), nil
			},
		})
	}
}

// Bind declares a slot named name, holding initial, governed by policy.
func Bind[T any](name string, initial T, policy Policy[T]) Option {
	return bind(name, policy != nil, func(h *Host) any {
		return newSlot(h.name, name, initial, policy)
	})
}

// BindLate declares a slot with no initial value. Get fails with
// UNINITIALIZED until the first accepted write.
func BindLate[T any](name string, policy Policy[T]) Option {
	return bind(name, policy != nil, func(h *Host) any {
		return newLateSlot(h.name, name, policy)
	})
}

// BindComputed declares a read-only slot whose value compute derives from
// the host on every read, typically from sibling slots. Set on it fails
// with READ_ONLY.
func BindComputed[T any](name string, compute func(h *Host) (T, error), policy Policy[T]) Option {
	return bind(name, policy != nil, func(h *Host) any {
		return newComputedSlot(h.name, name, func() (T, error) { return compute(h) }, policy)
	})
}

// BindLazy declares a read-only slot computed on its first successful read
// and cached for the life of the host. A failed computation is retried on
// the next read. The policy's OnRead still applies to every read.
func BindLazy[T any](name string, compute func(h *Host) (T, error), policy Policy[T]) Option {
	return bind(name, policy != nil, func(h *Host) any {
		l := NewLazy(func() (T, error) { return compute(h) })
		return newComputedSlot(h.name, name, l.Get, policy)
	})
}

// WithLogger sets the logger used for construction diagnostics.
// Hosts are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *hostConfig) {
		c.logger = l
	}
}

// NewHost constructs a host and initializes every declared slot.
//
// Binding the same name twice is a configuration error: construction stops
// and the error is returned. The earlier binding is never overwritten.
func NewHost(name string, opts ...Option) (*Host, error) {
	cfg := &hostConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := &Host{
		name:   name,
		order:  make([]string, 0, len(cfg.bindings)),
		slots:  make(map[string]any, len(cfg.bindings)),
		logger: cfg.logger,
	}

	for _, b := range cfg.bindings {
		if b.name == "" {
			return nil, newError(ErrCodeInvalidName, name, "", "slot name must be non-empty")
		}
		if _, exists := h.slots[b.name]; exists {
			h.logger.Error("duplicate slot binding", "host", name, "slot", b.name)
			return nil, newError(ErrCodeDuplicateSlot, name, b.name, "slot is already bound on this host")
		}
		s, err := b.build(h)
		if err != nil {
			if se, ok := err.(*Error); ok {
				se.Host = name
			}
			return nil, err
		}
		h.slots[b.name] = s
		h.order = append(h.order, b.name)
		h.logger.Debug("slot bound", "host", name, "slot", b.name)
	}

	return h, nil
}

// MustHost is like NewHost but panics on a configuration error.
func MustHost(name string, opts ...Option) *Host {
	h, err := NewHost(name, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// Name returns the host name.
func (h *Host) Name() string {
	return h.name
}

// Names returns slot names in declaration order.
func (h *Host) Names() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Has reports whether the host declares a slot called name.
func (h *Host) Has(name string) bool {
	_, ok := h.slots[name]
	return ok
}

// Values returns every slot's current value, read through its policy.
// Slots that cannot be loaded, such as unset late slots, are left out.
func (h *Host) Values() map[string]any {
	out := make(map[string]any, len(h.slots))
	for name, s := range h.slots {
		v, err := s.(interface{ loadAny() (any, error) }).loadAny()
		if err != nil {
			continue
		}
		out[name] = v
	}
	return out
}

// Lookup returns the typed handle for a slot.
func Lookup[T any](h *Host, name string) (*Slot[T], error) {
	raw, ok := h.slots[name]
	if !ok {
		return nil, newError(ErrCodeUnknownSlot, h.name, name, "no such slot")
	}
	s, ok := raw.(*Slot[T])
	if !ok {
		return nil, newError(ErrCodeTypeMismatch, h.name, name, "slot does not hold %s", reflect.TypeFor[T]())
	}
	return s, nil
}

// Get reads a slot through its policy.
func Get[T any](h *Host, name string) (T, error) {
	s, err := Lookup[T](h, name)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.Load()
}

// Set writes a slot through its policy.
func Set[T any](h *Host, name string, v T) (Change[T], error) {
	s, err := Lookup[T](h, name)
	if err != nil {
		return Change[T]{}, err
	}
	if s.ReadOnly() {
		return Change[T]{}, newError(ErrCodeReadOnly, h.name, name, "computed slot cannot be written")
	}
	return s.Write(v), nil
}
