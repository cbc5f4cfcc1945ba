package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON implements json.Unmarshaler. The initial value goes through
// UnmarshalIRValue, so compiled IR read back from disk follows the same
// float and null rules as the compiler.
func (s *SlotSpec) UnmarshalJSON(data []byte) error {
	type plain SlotSpec
	var raw struct {
		plain
		Initial json.RawMessage `json:"initial"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	initial, err := decodeOptional("initial", raw.Initial)
	if err != nil {
		return fmt.Errorf("slot %s: %w", raw.Name, err)
	}
	*s = SlotSpec(raw.plain)
	s.Initial = initial
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RuleSpec) UnmarshalJSON(data []byte) error {
	type plain RuleSpec
	var raw struct {
		plain
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := decodeOptional("value", raw.Value)
	if err != nil {
		return fmt.Errorf("rule %s: %w", raw.Op, err)
	}
	*r = RuleSpec(raw.plain)
	r.Value = value
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *ThenClause) UnmarshalJSON(data []byte) error {
	type plain ThenClause
	var raw struct {
		plain
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := decodeOptional("then.value", raw.Value)
	if err != nil {
		return err
	}
	*t = ThenClause(raw.plain)
	t.Value = value
	return nil
}

// decodeOptional decodes a value field that may be absent. Absent and
// explicit null both mean "not set".
func decodeOptional(field string, raw json.RawMessage) (IRValue, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	v, err := UnmarshalIRValue(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}
