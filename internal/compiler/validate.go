package compiler

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/roach88/slotbind/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Host and slot errors (E101-E109)
	ErrHostNoSlots        = "E101" // host declares no slots
	ErrDuplicateSlot      = "E102" // slot name bound twice
	ErrInvalidSlotType    = "E103" // unknown slot type
	ErrInvalidInitial     = "E104" // initial of the wrong type
	ErrInvalidPolicyKind  = "E105" // unknown policy kind
	ErrFloatTypeForbidden = "E106" // float types not allowed
	ErrInvalidRule        = "E107" // unknown rule op or bad operand
	ErrInvalidTransform   = "E108" // unknown transform or bad bounds
	ErrInvalidName        = "E109" // empty host or slot name

	// Reaction errors (E110-E119)
	ErrUnknownReactionSlot = "E110" // when/then slot not declared
	ErrUnknownReactionHost = "E111" // then host not declared
	ErrInvalidOutcome      = "E112" // invalid when outcome
	ErrInvalidThenClause   = "E113" // then needs exactly one of value/from
	ErrInvalidCondition    = "E114" // invalid where binding or rule
	ErrDuplicateReaction   = "E115" // reaction id used twice in a host
	ErrDuplicateHost       = "E116" // host name declared twice

	// Computed slot errors (E120-E129)
	ErrInvalidCompute = "E120" // bad compute op, args or policy
	ErrReadOnlyTarget = "E121" // reaction watches or writes a computed slot
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks one host in isolation. Reactions that target another
// host are only checked by ValidateAll. Returns all errors found.
func Validate(spec *ir.HostSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "host name is required", Code: ErrInvalidName})
	}
	if len(spec.Slots) == 0 {
		errs = append(errs, ValidationError{
			Field:   "slots",
			Message: fmt.Sprintf("host %q must declare at least one slot", spec.Name),
			Code:    ErrHostNoSlots,
		})
	}

	seen := make(map[string]bool)
	for i, s := range spec.Slots {
		field := fmt.Sprintf("slots[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "slot name is required", Code: ErrInvalidName})
		}
		if seen[s.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate slot name: %q", s.Name),
				Code:    ErrDuplicateSlot,
			})
		}
		seen[s.Name] = true
		errs = append(errs, validateSlot(spec, s, field)...)
	}

	reactionIDs := make(map[string]bool)
	for i, r := range spec.Reactions {
		field := fmt.Sprintf("reactions[%d]", i)
		if reactionIDs[r.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate reaction id: %q", r.ID),
				Code:    ErrDuplicateReaction,
			})
		}
		reactionIDs[r.ID] = true
		errs = append(errs, validateReaction(spec, nil, r, field)...)
	}

	return errs
}

// ValidateAll validates every host and resolves cross-host reaction targets.
func ValidateAll(specs []ir.HostSpec) []ValidationError {
	var errs []ValidationError

	byName := make(map[string]*ir.HostSpec, len(specs))
	for i := range specs {
		if _, dup := byName[specs[i].Name]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("hosts[%d].name", i),
				Message: fmt.Sprintf("duplicate host name: %q", specs[i].Name),
				Code:    ErrDuplicateHost,
			})
			continue
		}
		byName[specs[i].Name] = &specs[i]
	}

	for i := range specs {
		spec := &specs[i]
		for _, e := range Validate(spec) {
			e.Field = spec.Name + "." + e.Field
			errs = append(errs, e)
		}
		for j, r := range spec.Reactions {
			if r.Then.Host == "" || r.Then.Host == spec.Name {
				continue
			}
			field := fmt.Sprintf("%s.reactions[%d]", spec.Name, j)
			errs = append(errs, validateThenTarget(spec, byName, r, field)...)
		}
	}

	return errs
}

func validateSlot(spec *ir.HostSpec, s ir.SlotSpec, field string) []ValidationError {
	var errs []ValidationError

	if isFloatType(s.Type) {
		errs = append(errs, ValidationError{
			Field:   field + ".type",
			Message: fmt.Sprintf("float type forbidden for slot %q, use int instead", s.Name),
			Code:    ErrFloatTypeForbidden,
		})
		return errs
	}
	if !ir.ValidSlotTypes[s.Type] {
		errs = append(errs, ValidationError{
			Field:   field + ".type",
			Message: fmt.Sprintf("invalid type %q for slot %q, must be string, int or bool", s.Type, s.Name),
			Code:    ErrInvalidSlotType,
		})
		return errs
	}

	if s.Compute != nil {
		return append(errs, validateCompute(spec, s, field)...)
	}

	// A nil initial is a late slot.
	if s.Initial != nil {
		if got := ir.TypeOf(s.Initial); got != s.Type {
			errs = append(errs, ValidationError{
				Field:   field + ".initial",
				Message: fmt.Sprintf("initial value of slot %q is %s, want %s", s.Name, got, s.Type),
				Code:    ErrInvalidInitial,
			})
		}
	}

	errs = append(errs, validatePolicy(s.Policy, s.Type, field+".policy")...)
	return errs
}

// validateCompute checks a computed slot. Arguments must be stored or late
// slots of the same host, so computed slots never chain.
func validateCompute(spec *ir.HostSpec, s ir.SlotSpec, field string) []ValidationError {
	var errs []ValidationError
	c := s.Compute
	bad := func(f, msg string) {
		errs = append(errs, ValidationError{Field: field + f, Message: msg, Code: ErrInvalidCompute})
	}

	if s.Initial != nil {
		bad(".initial", fmt.Sprintf("computed slot %q cannot declare an initial value", s.Name))
	}
	if s.Policy.Kind != ir.PolicyPlain && s.Policy.Kind != ir.PolicyPresenting {
		bad(".policy.kind", fmt.Sprintf("computed slot %q only accepts plain or presenting policies, got %q", s.Name, s.Policy.Kind))
	} else {
		errs = append(errs, validatePolicy(s.Policy, s.Type, field+".policy")...)
	}

	result, ok := ir.ComputeResultTypes[c.Op]
	if !ok {
		bad(".compute.op", fmt.Sprintf("invalid compute op %q, must be product, sum or concat", c.Op))
		return errs
	}
	if result != s.Type {
		bad(".compute.op", fmt.Sprintf("compute %q produces %s, slot %q is %s", c.Op, result, s.Name, s.Type))
	}
	if len(c.Args) == 0 {
		bad(".compute.args", fmt.Sprintf("compute %q requires at least one argument", c.Op))
	}

	want := ir.ComputeArgTypes[c.Op]
	for i, arg := range c.Args {
		argField := fmt.Sprintf(".compute.args[%d]", i)
		src := spec.Slot(arg)
		switch {
		case src == nil:
			bad(argField, fmt.Sprintf("unknown slot %q on host %q", arg, spec.Name))
		case src.IsComputed():
			bad(argField, fmt.Sprintf("argument %q is itself computed", arg))
		case want != "" && src.Type != want:
			bad(argField, fmt.Sprintf("compute %q needs %s arguments, %q is %s", c.Op, want, arg, src.Type))
		}
	}
	return errs
}

func validatePolicy(p ir.PolicySpec, slotType, field string) []ValidationError {
	var errs []ValidationError

	if !ir.ValidPolicyKinds[p.Kind] {
		return append(errs, ValidationError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("invalid policy kind %q", p.Kind),
			Code:    ErrInvalidPolicyKind,
		})
	}

	usesRules := p.Kind == ir.PolicyVetoable || p.Kind == ir.PolicyValidating
	usesTransform := p.Kind == ir.PolicyTransforming || p.Kind == ir.PolicyPresenting

	switch {
	case usesRules && len(p.Rules) == 0:
		errs = append(errs, ValidationError{
			Field:   field + ".rules",
			Message: fmt.Sprintf("%s policy requires at least one rule", p.Kind),
			Code:    ErrInvalidRule,
		})
	case !usesRules && len(p.Rules) > 0:
		errs = append(errs, ValidationError{
			Field:   field + ".rules",
			Message: fmt.Sprintf("rules do not apply to %s policy", p.Kind),
			Code:    ErrInvalidRule,
		})
	}
	for i, r := range p.Rules {
		errs = append(errs, validateRule(r, slotType, fmt.Sprintf("%s.rules[%d]", field, i))...)
	}

	switch {
	case usesTransform && p.Transform == nil:
		errs = append(errs, ValidationError{
			Field:   field + ".transform",
			Message: fmt.Sprintf("%s policy requires a transform", p.Kind),
			Code:    ErrInvalidTransform,
		})
	case !usesTransform && p.Transform != nil:
		errs = append(errs, ValidationError{
			Field:   field + ".transform",
			Message: fmt.Sprintf("transform does not apply to %s policy", p.Kind),
			Code:    ErrInvalidTransform,
		})
	case p.Transform != nil:
		errs = append(errs, validateTransform(*p.Transform, slotType, field+".transform")...)
	}

	if p.Kind == ir.PolicyChain && len(p.Steps) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".steps",
			Message: "chain policy requires at least one step",
			Code:    ErrInvalidPolicyKind,
		})
	}
	if p.Kind != ir.PolicyChain && len(p.Steps) > 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".steps",
			Message: fmt.Sprintf("steps do not apply to %s policy", p.Kind),
			Code:    ErrInvalidPolicyKind,
		})
	}
	for i, step := range p.Steps {
		errs = append(errs, validatePolicy(step, slotType, fmt.Sprintf("%s.steps[%d]", field, i))...)
	}

	return errs
}

func validateRule(r ir.RuleSpec, slotType, field string) []ValidationError {
	want, ok := ir.RuleOperandTypes[r.Op]
	if !ok {
		return []ValidationError{{
			Field:   field + ".op",
			Message: fmt.Sprintf("invalid rule op %q", r.Op),
			Code:    ErrInvalidRule,
		}}
	}
	if want != "" && want != slotType {
		return []ValidationError{{
			Field:   field + ".op",
			Message: fmt.Sprintf("rule %q applies to %s slots, not %s", r.Op, want, slotType),
			Code:    ErrInvalidRule,
		}}
	}

	bad := func(msg string) []ValidationError {
		return []ValidationError{{Field: field + ".value", Message: msg, Code: ErrInvalidRule}}
	}

	switch r.Op {
	case ir.RuleMin, ir.RuleMax:
		if _, ok := r.Value.(ir.IRInt); !ok {
			return bad(fmt.Sprintf("rule %q requires an int operand", r.Op))
		}
	case ir.RuleMaxLen:
		n, ok := r.Value.(ir.IRInt)
		if !ok || n < 0 {
			return bad("rule \"max_len\" requires a non-negative int operand")
		}
	case ir.RuleContains:
		if _, ok := r.Value.(ir.IRString); !ok {
			return bad("rule \"contains\" requires a string operand")
		}
	case ir.RuleOneOf:
		arr, ok := r.Value.(ir.IRArray)
		if !ok || len(arr) == 0 {
			return bad("rule \"one_of\" requires a non-empty array operand")
		}
		for i, elem := range arr {
			if ir.TypeOf(elem) != slotType {
				return bad(fmt.Sprintf("one_of[%d] is %s, want %s", i, ir.TypeOf(elem), slotType))
			}
		}
	}
	return nil
}

func validateTransform(t ir.TransformSpec, slotType, field string) []ValidationError {
	want, ok := ir.TransformOperandTypes[t.Name]
	if !ok {
		return []ValidationError{{
			Field:   field + ".name",
			Message: fmt.Sprintf("invalid transform %q", t.Name),
			Code:    ErrInvalidTransform,
		}}
	}
	if want != slotType {
		return []ValidationError{{
			Field:   field + ".name",
			Message: fmt.Sprintf("transform %q applies to %s slots, not %s", t.Name, want, slotType),
			Code:    ErrInvalidTransform,
		}}
	}
	if (t.Name == ir.TransformUpper || t.Name == ir.TransformLower) && t.Text != "" {
		if _, err := language.Parse(t.Text); err != nil {
			return []ValidationError{{
				Field:   field + ".text",
				Message: fmt.Sprintf("invalid language tag %q: %v", t.Text, err),
				Code:    ErrInvalidTransform,
			}}
		}
	}
	if t.Name == ir.TransformClamp && t.Min > t.Max {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("clamp min %d exceeds max %d", t.Min, t.Max),
			Code:    ErrInvalidTransform,
		}}
	}
	return nil
}

// validateReaction checks a reaction against its own host. Targets on
// other hosts are skipped here; ValidateAll resolves them.
func validateReaction(spec *ir.HostSpec, hosts map[string]*ir.HostSpec, r ir.ReactionSpec, field string) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(r.ID) == "" {
		errs = append(errs, ValidationError{Field: field + ".id", Message: "reaction id is required", Code: ErrInvalidName})
	}

	trigger := spec.Slot(r.When.Slot)
	if trigger == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".when.slot",
			Message: fmt.Sprintf("unknown slot %q on host %q", r.When.Slot, spec.Name),
			Code:    ErrUnknownReactionSlot,
		})
	}
	if trigger != nil && trigger.IsComputed() {
		errs = append(errs, ValidationError{
			Field:   field + ".when.slot",
			Message: fmt.Sprintf("slot %q is computed and never changes", r.When.Slot),
			Code:    ErrReadOnlyTarget,
		})
	}
	if !ir.ValidOutcomes[r.When.Outcome] {
		errs = append(errs, ValidationError{
			Field:   field + ".when.outcome",
			Message: fmt.Sprintf("invalid outcome %q, must be committed, rejected or any", r.When.Outcome),
			Code:    ErrInvalidOutcome,
		})
	}

	if r.Where != nil {
		if !ir.ValidBindings[r.Where.Binding] {
			errs = append(errs, ValidationError{
				Field:   field + ".where.binding",
				Message: fmt.Sprintf("invalid binding %q, must be new, old or proposed", r.Where.Binding),
				Code:    ErrInvalidCondition,
			})
		}
		if trigger != nil {
			for _, e := range validateRule(r.Where.Rule, trigger.Type, field+".where.rule") {
				e.Code = ErrInvalidCondition
				errs = append(errs, e)
			}
		}
	}

	hasValue := r.Then.Value != nil
	hasFrom := r.Then.From != ""
	if hasValue == hasFrom {
		errs = append(errs, ValidationError{
			Field:   field + ".then",
			Message: "then clause requires exactly one of value or from",
			Code:    ErrInvalidThenClause,
		})
		return errs
	}
	if hasFrom && !ir.ValidBindings[r.Then.From] {
		errs = append(errs, ValidationError{
			Field:   field + ".then.from",
			Message: fmt.Sprintf("invalid binding %q, must be new, old or proposed", r.Then.From),
			Code:    ErrInvalidThenClause,
		})
		return errs
	}

	if r.Then.Host == "" || r.Then.Host == spec.Name {
		errs = append(errs, validateThenTarget(spec, hosts, r, field)...)
	}
	return errs
}

// validateThenTarget resolves the written slot and checks its type against
// the literal value or the forwarded binding.
func validateThenTarget(spec *ir.HostSpec, hosts map[string]*ir.HostSpec, r ir.ReactionSpec, field string) []ValidationError {
	target := spec
	if r.Then.Host != "" && r.Then.Host != spec.Name {
		target = hosts[r.Then.Host]
		if target == nil {
			return []ValidationError{{
				Field:   field + ".then.host",
				Message: fmt.Sprintf("unknown host %q", r.Then.Host),
				Code:    ErrUnknownReactionHost,
			}}
		}
	}

	slot := target.Slot(r.Then.Slot)
	if slot == nil {
		return []ValidationError{{
			Field:   field + ".then.slot",
			Message: fmt.Sprintf("unknown slot %q on host %q", r.Then.Slot, target.Name),
			Code:    ErrUnknownReactionSlot,
		}}
	}

	if slot.IsComputed() {
		return []ValidationError{{
			Field:   field + ".then.slot",
			Message: fmt.Sprintf("slot %q on host %q is computed and cannot be written", r.Then.Slot, target.Name),
			Code:    ErrReadOnlyTarget,
		}}
	}

	var got string
	if r.Then.Value != nil {
		got = ir.TypeOf(r.Then.Value)
	} else if trigger := spec.Slot(r.When.Slot); trigger != nil {
		got = trigger.Type
	} else {
		return nil
	}
	if got != slot.Type {
		return []ValidationError{{
			Field:   field + ".then",
			Message: fmt.Sprintf("writes %s into %s slot %s.%s", got, slot.Type, target.Name, slot.Name),
			Code:    ErrInvalidThenClause,
		}}
	}
	return nil
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	floatTypes := map[string]bool{
		"float":   true,
		"float32": true,
		"float64": true,
		"number":  true,
		"double":  true,
	}
	return floatTypes[t]
}
