package ir

// Change records one slot write: what was proposed, what the policy made of
// it, and whether it was accepted. A rejected change has Committed == Old.
type Change struct {
	ID        string  `json:"id"`
	FlowToken string  `json:"flow_token"`
	Seq       int64   `json:"seq"`
	Host      string  `json:"host"`
	Slot      string  `json:"slot"`
	Old       IRValue `json:"old"`
	Proposed  IRValue `json:"proposed"`
	Committed IRValue `json:"committed"`
	Accepted  bool    `json:"accepted"`
	Cause     string  `json:"cause"` // "external" or "reaction:<id>"
}

// CauseExternal marks a change requested by a caller rather than a reaction.
const CauseExternal = "external"

// ReactionCause returns the cause string for a change written by reaction id.
func ReactionCause(id string) string {
	return "reaction:" + id
}

// ToIRObject returns the change as an IRObject for canonical encoding.
func (c Change) ToIRObject() IRObject {
	obj := IRObject{
		"id":         IRString(c.ID),
		"flow_token": IRString(c.FlowToken),
		"seq":        IRInt(c.Seq),
		"host":       IRString(c.Host),
		"slot":       IRString(c.Slot),
		"accepted":   IRBool(c.Accepted),
		"cause":      IRString(c.Cause),
	}
	if c.Old != nil {
		obj["old"] = c.Old
	}
	if c.Proposed != nil {
		obj["proposed"] = c.Proposed
	}
	if c.Committed != nil {
		obj["committed"] = c.Committed
	}
	return obj
}
