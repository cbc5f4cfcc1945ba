package harness

import (
	"github.com/roach88/slotbind/internal/ir"
)

// TraceEvent is one journaled change as it appears in a scenario trace.
// It carries the change minus its content hash, so golden traces stay
// readable.
type TraceEvent struct {
	Seq       int64      `json:"seq"`
	FlowToken string     `json:"flow_token"`
	Host      string     `json:"host"`
	Slot      string     `json:"slot"`
	Old       ir.IRValue `json:"old"`
	Proposed  ir.IRValue `json:"proposed"`
	Committed ir.IRValue `json:"committed"`
	Accepted  bool       `json:"accepted"`
	Cause     string     `json:"cause"`
}

// Ref returns "Host.slot".
func (e TraceEvent) Ref() string {
	return e.Host + "." + e.Slot
}

func traceEventFromChange(c ir.Change) TraceEvent {
	return TraceEvent{
		Seq:       c.Seq,
		FlowToken: c.FlowToken,
		Host:      c.Host,
		Slot:      c.Slot,
		Old:       c.Old,
		Proposed:  c.Proposed,
		Committed: c.Committed,
		Accepted:  c.Accepted,
		Cause:     c.Cause,
	}
}

// toIRObject leaves out old and committed when a late slot had no value.
func (e TraceEvent) toIRObject() ir.IRObject {
	obj := ir.IRObject{
		"seq":        ir.IRInt(e.Seq),
		"flow_token": ir.IRString(e.FlowToken),
		"host":       ir.IRString(e.Host),
		"slot":       ir.IRString(e.Slot),
		"proposed":   e.Proposed,
		"accepted":   ir.IRBool(e.Accepted),
		"cause":      ir.IRString(e.Cause),
	}
	if e.Old != nil {
		obj["old"] = e.Old
	}
	if e.Committed != nil {
		obj["committed"] = e.Committed
	}
	return obj
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace is the journal of the run, read back from the store in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// State maps "Host.slot" to its final value, read through the policy.
	State map[string]ir.IRValue `json:"state,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]ir.IRValue),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddChangeTrace appends c to the trace.
func (r *Result) AddChangeTrace(c ir.Change) {
	r.Trace = append(r.Trace, traceEventFromChange(c))
}
