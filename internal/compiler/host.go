package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/slotbind/internal/ir"
)

// CompileHost parses a CUE value into a HostSpec.
//
// The CUE value should be the host struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`host: User: { slot: age: { ... } }`)
//	spec, err := CompileHost(v.LookupPath(cue.ParsePath("host.User")))
//
// Slots and reactions keep their source order.
func CompileHost(v cue.Value) (*ir.HostSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.HostSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = unquote(labels[len(labels)-1].String())
	}

	slotsVal := v.LookupPath(cue.ParsePath("slot"))
	if !slotsVal.Exists() {
		return nil, &CompileError{
			Field:   "slot",
			Message: "at least one slot is required",
			Pos:     v.Pos(),
		}
	}

	var err error
	spec.Slots, err = parseSlots(slotsVal)
	if err != nil {
		return nil, err
	}

	reactionsVal := v.LookupPath(cue.ParsePath("reaction"))
	if reactionsVal.Exists() {
		spec.Reactions, err = parseReactions(reactionsVal)
		if err != nil {
			return nil, err
		}
	}

	return spec, nil
}

func parseSlots(v cue.Value) ([]ir.SlotSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var slots []ir.SlotSpec
	for iter.Next() {
		name := unquote(iter.Selector().String())
		slotVal := iter.Value()
		field := "slot." + name

		s := ir.SlotSpec{Name: name}

		typeVal := slotVal.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{Field: field + ".type", Message: "slot type is required", Pos: slotVal.Pos()}
		}
		if s.Type, err = typeVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		// No initial makes a late slot.
		if initVal := slotVal.LookupPath(cue.ParsePath("initial")); initVal.Exists() {
			if s.Initial, err = decodeValue(initVal, field+".initial"); err != nil {
				return nil, err
			}
		}

		if computeVal := slotVal.LookupPath(cue.ParsePath("compute")); computeVal.Exists() {
			if s.Compute, err = parseCompute(computeVal, field+".compute"); err != nil {
				return nil, err
			}
		}

		policyVal := slotVal.LookupPath(cue.ParsePath("policy"))
		if policyVal.Exists() {
			if s.Policy, err = parsePolicy(policyVal, field+".policy"); err != nil {
				return nil, err
			}
		} else {
			s.Policy = ir.PolicySpec{Kind: ir.PolicyPlain}
		}

		slots = append(slots, s)
	}
	return slots, nil
}

func parseCompute(v cue.Value, field string) (*ir.ComputeSpec, error) {
	c := &ir.ComputeSpec{}
	var err error
	if c.Op, err = requiredString(v, "op", field); err != nil {
		return nil, err
	}

	argsVal := v.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		return nil, &CompileError{Field: field + ".args", Message: "compute args are required", Pos: v.Pos()}
	}
	iter, err := argsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		arg, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.Args = append(c.Args, arg)
	}

	if sepVal := v.LookupPath(cue.ParsePath("sep")); sepVal.Exists() {
		if c.Sep, err = sepVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if lazyVal := v.LookupPath(cue.ParsePath("lazy")); lazyVal.Exists() {
		if c.Lazy, err = lazyVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	return c, nil
}

// parsePolicy reads a policy struct. Chains recurse through steps.
func parsePolicy(v cue.Value, field string) (ir.PolicySpec, error) {
	var p ir.PolicySpec

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return p, &CompileError{Field: field + ".kind", Message: "policy kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return p, formatCUEError(err)
	}
	p.Kind = kind

	if msgVal := v.LookupPath(cue.ParsePath("message")); msgVal.Exists() {
		if p.Message, err = msgVal.String(); err != nil {
			return p, formatCUEError(err)
		}
	}

	if rulesVal := v.LookupPath(cue.ParsePath("rules")); rulesVal.Exists() {
		iter, err := rulesVal.List()
		if err != nil {
			return p, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			rule, err := parseRule(iter.Value(), fmt.Sprintf("%s.rules[%d]", field, i))
			if err != nil {
				return p, err
			}
			p.Rules = append(p.Rules, rule)
		}
	}

	if tVal := v.LookupPath(cue.ParsePath("transform")); tVal.Exists() {
		t, err := parseTransform(tVal, field+".transform")
		if err != nil {
			return p, err
		}
		p.Transform = t
	}

	if stepsVal := v.LookupPath(cue.ParsePath("steps")); stepsVal.Exists() {
		iter, err := stepsVal.List()
		if err != nil {
			return p, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			step, err := parsePolicy(iter.Value(), fmt.Sprintf("%s.steps[%d]", field, i))
			if err != nil {
				return p, err
			}
			p.Steps = append(p.Steps, step)
		}
	}

	return p, nil
}

func parseRule(v cue.Value, field string) (ir.RuleSpec, error) {
	var r ir.RuleSpec

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return r, &CompileError{Field: field + ".op", Message: "rule op is required", Pos: v.Pos()}
	}
	op, err := opVal.String()
	if err != nil {
		return r, formatCUEError(err)
	}
	r.Op = op

	if val := v.LookupPath(cue.ParsePath("value")); val.Exists() {
		if r.Value, err = decodeValue(val, field+".value"); err != nil {
			return r, err
		}
	}
	return r, nil
}

func parseTransform(v cue.Value, field string) (*ir.TransformSpec, error) {
	t := &ir.TransformSpec{}

	// Shorthand: transform: "upper"
	if s, err := v.String(); err == nil {
		t.Name = s
		return t, nil
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: field + ".name", Message: "transform name is required", Pos: v.Pos()}
	}
	var err error
	if t.Name, err = nameVal.String(); err != nil {
		return nil, formatCUEError(err)
	}
	if minVal := v.LookupPath(cue.ParsePath("min")); minVal.Exists() {
		if t.Min, err = minVal.Int64(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if maxVal := v.LookupPath(cue.ParsePath("max")); maxVal.Exists() {
		if t.Max, err = maxVal.Int64(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if textVal := v.LookupPath(cue.ParsePath("text")); textVal.Exists() {
		if t.Text, err = textVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	return t, nil
}

func parseReactions(v cue.Value) ([]ir.ReactionSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var reactions []ir.ReactionSpec
	for iter.Next() {
		id := unquote(iter.Selector().String())
		rv := iter.Value()
		field := fmt.Sprintf("reaction.%q", id)

		r := ir.ReactionSpec{ID: id}

		whenVal := rv.LookupPath(cue.ParsePath("when"))
		if !whenVal.Exists() {
			return nil, &CompileError{Field: field + ".when", Message: "when clause is required", Pos: rv.Pos()}
		}
		if r.When.Slot, err = requiredString(whenVal, "slot", field+".when"); err != nil {
			return nil, err
		}
		r.When.Outcome = ir.OutcomeCommitted
		if oVal := whenVal.LookupPath(cue.ParsePath("outcome")); oVal.Exists() {
			if r.When.Outcome, err = oVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		if whereVal := rv.LookupPath(cue.ParsePath("where")); whereVal.Exists() {
			cond := &ir.ConditionSpec{Binding: ir.BindingNew}
			if bVal := whereVal.LookupPath(cue.ParsePath("binding")); bVal.Exists() {
				if cond.Binding, err = bVal.String(); err != nil {
					return nil, formatCUEError(err)
				}
			}
			ruleVal := whereVal.LookupPath(cue.ParsePath("rule"))
			if !ruleVal.Exists() {
				return nil, &CompileError{Field: field + ".where.rule", Message: "where clause requires a rule", Pos: whereVal.Pos()}
			}
			if cond.Rule, err = parseRule(ruleVal, field+".where.rule"); err != nil {
				return nil, err
			}
			r.Where = cond
		}

		thenVal := rv.LookupPath(cue.ParsePath("then"))
		if !thenVal.Exists() {
			return nil, &CompileError{Field: field + ".then", Message: "then clause is required", Pos: rv.Pos()}
		}
		if r.Then.Slot, err = requiredString(thenVal, "slot", field+".then"); err != nil {
			return nil, err
		}
		if hVal := thenVal.LookupPath(cue.ParsePath("host")); hVal.Exists() {
			if r.Then.Host, err = hVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if vVal := thenVal.LookupPath(cue.ParsePath("value")); vVal.Exists() {
			if r.Then.Value, err = decodeValue(vVal, field+".then.value"); err != nil {
				return nil, err
			}
		}
		if fVal := thenVal.LookupPath(cue.ParsePath("from")); fVal.Exists() {
			if r.Then.From, err = fVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		reactions = append(reactions, r)
	}
	return reactions, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// decodeValue converts a concrete CUE value to an IRValue. Floats and null
// are rejected here so they never reach the IR.
func decodeValue(v cue.Value, field string) (ir.IRValue, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, concreteError(v, field, err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, concreteError(v, field, err)
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, concreteError(v, field, err)
		}
		return ir.IRBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for i := 0; iter.Next(); i++ {
			elem, err := decodeValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			key := unquote(iter.Selector().String())
			elem, err := decodeValue(iter.Value(), field+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "float values are forbidden, use int instead",
			Pos:     v.Pos(),
		}
	case cue.NullKind:
		return nil, &CompileError{
			Field:   field,
			Message: "null values are forbidden",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func concreteError(v cue.Value, field string, err error) error {
	return &CompileError{
		Field:   field,
		Message: fmt.Sprintf("value must be concrete: %v", err),
		Pos:     v.Pos(),
	}
}

func unquote(label string) string {
	return strings.Trim(label, `"`)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
