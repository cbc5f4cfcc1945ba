package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/slotbind/internal/ir"
	"github.com/roach88/slotbind/internal/slot"
)

// policyBuilder turns a PolicySpec into a slot policy over IR values.
// Callbacks log through logger, which already carries the host name.
type policyBuilder struct {
	logger *slog.Logger
}

func (b policyBuilder) build(spec ir.PolicySpec) (slot.Policy[ir.IRValue], error) {
	switch spec.Kind {
	case ir.PolicyPlain, "":
		return slot.Plain[ir.IRValue](), nil

	case ir.PolicyObservable:
		msg := spec.Message
		if msg == "" {
			msg = "slot changed"
		}
		return slot.Observable(func(name string, old, new ir.IRValue) {
			b.logger.Info(msg, "slot", name, "old", old, "new", new)
		}), nil

	case ir.PolicyVetoable:
		rules := spec.Rules
		return slot.Vetoable(func(_ string, _, proposed ir.IRValue) bool {
			return evalRules(rules, proposed)
		}), nil

	case ir.PolicyValidating:
		rules := spec.Rules
		msg := spec.Message
		if msg == "" {
			msg = "write rejected"
		}
		return slot.Validating(
			func(_ string, _, proposed ir.IRValue) bool {
				return evalRules(rules, proposed)
			},
			func(name string, old, proposed ir.IRValue) {
				b.logger.Warn(msg, "slot", name, "kept", old, "proposed", proposed)
			},
		), nil

	case ir.PolicyTransforming, ir.PolicyPresenting:
		if spec.Transform == nil {
			return nil, fmt.Errorf("%s policy without transform", spec.Kind)
		}
		fn, err := buildTransform(*spec.Transform)
		if err != nil {
			return nil, err
		}
		if spec.Kind == ir.PolicyTransforming {
			return slot.Transforming(fn), nil
		}
		return slot.Presenting(fn), nil

	case ir.PolicyChain:
		members := make([]slot.Policy[ir.IRValue], 0, len(spec.Steps))
		for i, step := range spec.Steps {
			p, err := b.build(step)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			members = append(members, p)
		}
		return slot.Chain(members...), nil

	default:
		return nil, fmt.Errorf("unknown policy kind %q", spec.Kind)
	}
}
