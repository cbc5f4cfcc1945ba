package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room to change the hashed fields later.
const (
	DomainChange  = "slotbind/change/v1"
	DomainBinding = "slotbind/binding/v1"
	DomainSpec    = "slotbind/spec/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The separator keeps
// the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ChangeID computes the content-addressed ID of a change. The ID covers the
// flow, position and outcome but not the cause, so a replay that reaches the
// same outcome at the same seq produces the same ID.
//
// Old and Committed are nil when a late slot had no value; they are left
// out of the hash rather than encoded as null.
func ChangeID(c Change) (string, error) {
	if c.Proposed == nil {
		return "", fmt.Errorf("ChangeID: proposed must be set")
	}
	obj := IRObject{
		"flow_token": IRString(c.FlowToken),
		"seq":        IRInt(c.Seq),
		"host":       IRString(c.Host),
		"slot":       IRString(c.Slot),
		"proposed":   c.Proposed,
		"accepted":   IRBool(c.Accepted),
	}
	if c.Old != nil {
		obj["old"] = c.Old
	}
	if c.Committed != nil {
		obj["committed"] = c.Committed
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ChangeID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainChange, canonical), nil
}

// BindingHash hashes the values a reaction fired with. The engine's cycle
// detector keys on it.
func BindingHash(bindings IRObject) (string, error) {
	canonical, err := MarshalCanonical(bindings)
	if err != nil {
		return "", fmt.Errorf("BindingHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBinding, canonical), nil
}

// MustChangeID is like ChangeID but panics on error.
func MustChangeID(c Change) string {
	id, err := ChangeID(c)
	if err != nil {
		panic(err)
	}
	return id
}

// MustBindingHash is like BindingHash but panics on error.
func MustBindingHash(bindings IRObject) string {
	hash, err := BindingHash(bindings)
	if err != nil {
		panic(err)
	}
	return hash
}

// SpecHash identifies a compiled set of hosts. Two spec sets hash equal iff
// their canonical encodings match, so formatting and field order in the CUE
// source do not change it.
func SpecHash(specs []HostSpec) (string, error) {
	raw, err := json.Marshal(specs)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to encode: %w", err)
	}
	v, err := UnmarshalIRValue(raw)
	if err != nil {
		return "", fmt.Errorf("SpecHash: %w", err)
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}
