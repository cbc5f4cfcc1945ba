package ir

// HostSpec is a compiled host declaration.
type HostSpec struct {
	Name      string         `json:"name"`
	Slots     []SlotSpec     `json:"slots"`
	Reactions []ReactionSpec `json:"reactions,omitempty"`
}

// Slot returns the slot declared with name, or nil.
func (h *HostSpec) Slot(name string) *SlotSpec {
	for i := range h.Slots {
		if h.Slots[i].Name == name {
			return &h.Slots[i]
		}
	}
	return nil
}

// SlotSpec declares one named slot and the policy bound to it.
//
// A slot with neither Initial nor Compute is late: it has no value until
// its first accepted write, and reads fail before that. A slot with Compute
// is read-only and derives its value from sibling slots on every read.
type SlotSpec struct {
	Name    string       `json:"name"`
	Type    string       `json:"type"` // "string", "int", "bool"
	Initial IRValue      `json:"initial,omitempty"`
	Compute *ComputeSpec `json:"compute,omitempty"`
	Policy  PolicySpec   `json:"policy"`
}

// IsComputed reports whether the slot derives its value from siblings.
func (s SlotSpec) IsComputed() bool {
	return s.Compute != nil
}

// IsLate reports whether the slot starts without a value.
func (s SlotSpec) IsLate() bool {
	return s.Compute == nil && s.Initial == nil
}

// Compute ops.
const (
	ComputeProduct = "product"
	ComputeSum     = "sum"
	ComputeConcat  = "concat"
)

// ComputeResultTypes maps each compute op to the slot type it produces.
var ComputeResultTypes = map[string]string{
	ComputeProduct: TypeInt,
	ComputeSum:     TypeInt,
	ComputeConcat:  TypeString,
}

// ComputeArgTypes maps each compute op to the type its arguments must have.
// An empty entry means any slot type.
var ComputeArgTypes = map[string]string{
	ComputeProduct: TypeInt,
	ComputeSum:     TypeInt,
	ComputeConcat:  "",
}

// ComputeSpec derives a slot from sibling slots of the same host. Args names
// them in order. Sep joins concat parts. Lazy caches the first successful
// result for the life of the host.
type ComputeSpec struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
	Sep  string   `json:"sep,omitempty"`
	Lazy bool     `json:"lazy,omitempty"`
}

// Policy kinds.
const (
	PolicyPlain        = "plain"
	PolicyObservable   = "observable"
	PolicyVetoable     = "vetoable"
	PolicyValidating   = "validating"
	PolicyTransforming = "transforming"
	PolicyPresenting   = "presenting"
	PolicyChain        = "chain"
)

// ValidPolicyKinds defines allowed PolicySpec.Kind values.
var ValidPolicyKinds = map[string]bool{
	PolicyPlain:        true,
	PolicyObservable:   true,
	PolicyVetoable:     true,
	PolicyValidating:   true,
	PolicyTransforming: true,
	PolicyPresenting:   true,
	PolicyChain:        true,
}

// ValidSlotTypes defines allowed SlotSpec.Type values.
var ValidSlotTypes = map[string]bool{
	TypeString: true,
	TypeInt:    true,
	TypeBool:   true,
}

// PolicySpec describes the policy bound to a slot.
//
// Rules apply to vetoable and validating policies; all rules must pass.
// Transform applies to transforming (on write) and presenting (on read).
// Steps lists the members of a chain. Message is logged by a validating
// policy when it rejects a write; observable policies log it on commit.
type PolicySpec struct {
	Kind      string         `json:"kind"`
	Rules     []RuleSpec     `json:"rules,omitempty"`
	Transform *TransformSpec `json:"transform,omitempty"`
	Steps     []PolicySpec   `json:"steps,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Rule operators.
const (
	RuleMin      = "min"
	RuleMax      = "max"
	RuleNotEmpty = "not_empty"
	RuleContains = "contains"
	RuleMaxLen   = "max_len"
	RuleOneOf    = "one_of"
)

// RuleOperandTypes maps each rule op to the slot type it accepts. An empty
// entry means any slot type.
var RuleOperandTypes = map[string]string{
	RuleMin:      TypeInt,
	RuleMax:      TypeInt,
	RuleNotEmpty: TypeString,
	RuleContains: TypeString,
	RuleMaxLen:   TypeString,
	RuleOneOf:    "",
}

// RuleSpec is one predicate over a value. Value is the operand: an int for
// min, max and max_len, a string for contains, an array for one_of, unused
// for not_empty.
type RuleSpec struct {
	Op    string  `json:"op"`
	Value IRValue `json:"value,omitempty"`
}

// Transform names.
const (
	TransformUpper  = "upper"
	TransformLower  = "lower"
	TransformTrim   = "trim"
	TransformClamp  = "clamp"
	TransformPrefix = "prefix"
)

// TransformOperandTypes maps each transform to the slot type it accepts.
var TransformOperandTypes = map[string]string{
	TransformUpper:  TypeString,
	TransformLower:  TypeString,
	TransformTrim:   TypeString,
	TransformClamp:  TypeInt,
	TransformPrefix: TypeString,
}

// TransformSpec is a named pure transform. Min and Max bound clamp. Text is
// the prefix for prefix, and an optional BCP 47 language tag for upper and
// lower (case mapping differs for e.g. Turkish).
type TransformSpec struct {
	Name string `json:"name"`
	Min  int64  `json:"min,omitempty"`
	Max  int64  `json:"max,omitempty"`
	Text string `json:"text,omitempty"`
}

// Reaction outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeAny       = "any"
)

// ValidOutcomes defines allowed WhenClause.Outcome values.
var ValidOutcomes = map[string]bool{
	OutcomeCommitted: true,
	OutcomeRejected:  true,
	OutcomeAny:       true,
}

// Condition bindings.
const (
	BindingNew      = "new"
	BindingOld      = "old"
	BindingProposed = "proposed"
)

// ValidBindings defines allowed ConditionSpec.Binding and ThenClause.From values.
var ValidBindings = map[string]bool{
	BindingNew:      true,
	BindingOld:      true,
	BindingProposed: true,
}

// ReactionSpec is a rule "when a slot of this host is written with the given
// outcome (and the condition holds), write another slot".
type ReactionSpec struct {
	ID    string         `json:"id"`
	When  WhenClause     `json:"when"`
	Where *ConditionSpec `json:"where,omitempty"`
	Then  ThenClause     `json:"then"`
}

// WhenClause selects the triggering slot write.
type WhenClause struct {
	Slot    string `json:"slot"`
	Outcome string `json:"outcome"`
}

// ConditionSpec applies Rule to one binding of the triggering change.
type ConditionSpec struct {
	Binding string   `json:"binding"`
	Rule    RuleSpec `json:"rule"`
}

// ThenClause names the slot to write. Host defaults to the reacting host.
// Exactly one of Value (a literal) and From (a binding) is set.
type ThenClause struct {
	Host  string  `json:"host,omitempty"`
	Slot  string  `json:"slot"`
	Value IRValue `json:"value,omitempty"`
	From  string  `json:"from,omitempty"`
}
