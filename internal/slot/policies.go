package slot

// PlainPolicy passes values through untouched.
type PlainPolicy[T any] struct{}

// Plain returns a pass-through policy.
func Plain[T any]() PlainPolicy[T] {
	return PlainPolicy[T]{}
}

func (PlainPolicy[T]) OnRead(_ string, stored T) T { return stored }

func (PlainPolicy[T]) OnWrite(_ string, _, proposed T) (T, bool) { return proposed, true }

// ObservablePolicy always accepts and notifies its callback after each commit.
type ObservablePolicy[T any] struct {
	callback func(name string, old, new T)
}

// Observable returns a policy that calls callback(name, old, new) exactly
// once per write, after the new value is stored.
func Observable[T any](callback func(name string, old, new T)) *ObservablePolicy[T] {
	return &ObservablePolicy[T]{callback: callback}
}

func (p *ObservablePolicy[T]) OnRead(_ string, stored T) T { return stored }

func (p *ObservablePolicy[T]) OnWrite(_ string, _, proposed T) (T, bool) {
	return proposed, true
}

func (p *ObservablePolicy[T]) AfterCommit(name string, old, committed T) {
	if p.callback != nil {
		p.callback(name, old, committed)
	}
}

// VetoablePolicy commits a write only when its predicate accepts it.
type VetoablePolicy[T any] struct {
	predicate func(name string, old, proposed T) bool
}

// Vetoable returns a policy that evaluates predicate(name, old, proposed)
// on each write. A false result discards the write; nothing is notified.
func Vetoable[T any](predicate func(name string, old, proposed T) bool) *VetoablePolicy[T] {
	return &VetoablePolicy[T]{predicate: predicate}
}

func (p *VetoablePolicy[T]) OnRead(_ string, stored T) T { return stored }

func (p *VetoablePolicy[T]) OnWrite(name string, old, proposed T) (T, bool) {
	if p.predicate != nil && !p.predicate(name, old, proposed) {
		return old, false
	}
	return proposed, true
}

// ValidatingPolicy is a VetoablePolicy that also reports rejections.
type ValidatingPolicy[T any] struct {
	VetoablePolicy[T]
	onReject func(name string, old, proposed T)
}

// Validating returns a vetoable policy whose onReject hook runs after every
// rejected write, e.g. to log why a value was refused.
func Validating[T any](predicate func(name string, old, proposed T) bool, onReject func(name string, old, proposed T)) *ValidatingPolicy[T] {
	return &ValidatingPolicy[T]{
		VetoablePolicy: VetoablePolicy[T]{predicate: predicate},
		onReject:       onReject,
	}
}

func (p *ValidatingPolicy[T]) OnReject(name string, old, proposed T) {
	if p.onReject != nil {
		p.onReject(name, old, proposed)
	}
}

// TransformingPolicy stores transform(proposed). The transform must be pure.
type TransformingPolicy[T any] struct {
	transform func(T) T
}

// Transforming returns a policy that applies transform before storing.
// The initial value passes through the same transform.
func Transforming[T any](transform func(T) T) *TransformingPolicy[T] {
	return &TransformingPolicy[T]{transform: transform}
}

func (p *TransformingPolicy[T]) OnRead(_ string, stored T) T { return stored }

func (p *TransformingPolicy[T]) OnWrite(_ string, _, proposed T) (T, bool) {
	return p.transform(proposed), true
}

func (p *TransformingPolicy[T]) Init(_ string, initial T) T {
	return p.transform(initial)
}

// PresentingPolicy stores values untouched and formats them on read.
type PresentingPolicy[T any] struct {
	format func(T) T
}

// Presenting returns a policy whose reads return format(stored).
func Presenting[T any](format func(T) T) *PresentingPolicy[T] {
	return &PresentingPolicy[T]{format: format}
}

func (p *PresentingPolicy[T]) OnRead(_ string, stored T) T { return p.format(stored) }

func (p *PresentingPolicy[T]) OnWrite(_ string, _, proposed T) (T, bool) {
	return proposed, true
}

// ChainPolicy composes several policies into a single policy instance.
//
// Writes thread the value through members in order; the first member that
// rejects ends the write and only that member's OnReject runs. Reads thread
// the stored value through every member's OnRead in order. After a commit,
// every Committer member is notified in order.
type ChainPolicy[T any] struct {
	members []Policy[T]
}

// Chain returns a policy composed of members. Nil members are skipped.
func Chain[T any](members ...Policy[T]) *ChainPolicy[T] {
	c := &ChainPolicy[T]{members: make([]Policy[T], 0, len(members))}
	for _, m := range members {
		if m != nil {
			c.members = append(c.members, m)
		}
	}
	return c
}

func (c *ChainPolicy[T]) OnRead(name string, stored T) T {
	v := stored
	for _, m := range c.members {
		v = m.OnRead(name, v)
	}
	return v
}

func (c *ChainPolicy[T]) OnWrite(name string, old, proposed T) (T, bool) {
	v := proposed
	for _, m := range c.members {
		next, ok := m.OnWrite(name, old, v)
		if !ok {
			if r, isRejecter := m.(Rejecter[T]); isRejecter {
				r.OnReject(name, old, v)
			}
			return old, false
		}
		v = next
	}
	return v, true
}

func (c *ChainPolicy[T]) Init(name string, initial T) T {
	v := initial
	for _, m := range c.members {
		if in, ok := m.(Initializer[T]); ok {
			v = in.Init(name, v)
		}
	}
	return v
}

func (c *ChainPolicy[T]) AfterCommit(name string, old, committed T) {
	for _, m := range c.members {
		if cm, ok := m.(Committer[T]); ok {
			cm.AfterCommit(name, old, committed)
		}
	}
}
