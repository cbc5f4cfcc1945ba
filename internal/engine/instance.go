package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/slotbind/internal/ir"
	"github.com/roach88/slotbind/internal/slot"
)

// instance is a live host built from a HostSpec: one slot.Host whose slots
// hold IR values under the policies the spec declares.
type instance struct {
	spec  ir.HostSpec
	host  *slot.Host
	slots map[string]*slot.Slot[ir.IRValue]
	types map[string]string
}

// hostSet maps host name to instance. It is never mutated after it is
// built; Replay swaps in a whole new set.
type hostSet map[string]*instance

func buildInstance(spec ir.HostSpec, logger *slog.Logger) (*instance, error) {
	b := policyBuilder{logger: logger.With("host", spec.Name)}

	opts := []slot.Option{slot.WithLogger(logger)}
	for _, s := range spec.Slots {
		p, err := b.build(s.Policy)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", s.Name, err)
		}
		switch {
		case s.IsComputed():
			derive, err := buildCompute(*s.Compute)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", s.Name, err)
			}
			if s.Compute.Lazy {
				opts = append(opts, slot.BindLazy(s.Name, derive, p))
			} else {
				opts = append(opts, slot.BindComputed(s.Name, derive, p))
			}
		case s.IsLate():
			opts = append(opts, slot.BindLate(s.Name, p))
		default:
			opts = append(opts, slot.Bind(s.Name, s.Initial, p))
		}
	}

	h, err := slot.NewHost(spec.Name, opts...)
	if err != nil {
		return nil, err
	}

	inst := &instance{
		spec:  spec,
		host:  h,
		slots: make(map[string]*slot.Slot[ir.IRValue], len(spec.Slots)),
		types: make(map[string]string, len(spec.Slots)),
	}
	for _, s := range spec.Slots {
		handle, err := slot.Lookup[ir.IRValue](h, s.Name)
		if err != nil {
			return nil, err
		}
		inst.slots[s.Name] = handle
		inst.types[s.Name] = s.Type
	}
	return inst, nil
}

func buildHostSet(specs []ir.HostSpec, logger *slog.Logger) (hostSet, error) {
	set := make(hostSet, len(specs))
	for _, spec := range specs {
		if _, dup := set[spec.Name]; dup {
			return nil, newRuntimeError(ErrCodeDuplicateHost, spec.Name, "", "host declared twice")
		}
		inst, err := buildInstance(spec, logger)
		if err != nil {
			re := newRuntimeError(ErrCodeInvalidSpec, spec.Name, "", "%v", err)
			return nil, fmt.Errorf("build host %s: %w", spec.Name, re)
		}
		set[spec.Name] = inst
	}
	return set, nil
}

// resolve finds a slot and, for a non-nil value, checks the value's IR type
// against the declared slot type.
func (s hostSet) resolve(host, slotName string, value ir.IRValue) (*instance, *slot.Slot[ir.IRValue], error) {
	inst, ok := s[host]
	if !ok {
		return nil, nil, newRuntimeError(ErrCodeUnknownHost, host, slotName, "no such host")
	}
	handle, ok := inst.slots[slotName]
	if !ok {
		return nil, nil, newRuntimeError(ErrCodeUnknownSlot, host, slotName, "no such slot")
	}
	if value != nil {
		if got, want := ir.TypeOf(value), inst.types[slotName]; got != want {
			return nil, nil, newRuntimeError(ErrCodeTypeMismatch, host, slotName,
				"slot holds %s, got %s", want, got)
		}
	}
	return inst, handle, nil
}

// resolveWrite is resolve for a write target. Computed slots are refused.
func (s hostSet) resolveWrite(host, slotName string, value ir.IRValue) (*instance, *slot.Slot[ir.IRValue], error) {
	inst, handle, err := s.resolve(host, slotName, value)
	if err != nil {
		return nil, nil, err
	}
	if handle.ReadOnly() {
		return nil, nil, newRuntimeError(ErrCodeReadOnly, host, slotName, "computed slot cannot be written")
	}
	return inst, handle, nil
}

// load reads a slot through its policy and maps slot errors to runtime
// errors carrying the requested host and slot.
func load(host, slotName string, handle *slot.Slot[ir.IRValue]) (ir.IRValue, error) {
	v, err := handle.Load()
	if err == nil {
		return v, nil
	}
	if slot.IsUninitialized(err) {
		return nil, newRuntimeError(ErrCodeUninitialized, host, slotName, "%v", err)
	}
	return nil, newRuntimeError(ErrCodeComputeFailed, host, slotName, "%v", err)
}
