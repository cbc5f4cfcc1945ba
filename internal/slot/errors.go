package slot

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes slot errors.
type ErrorCode string

const (
	// ErrCodeDuplicateSlot indicates a slot name was bound twice on one host.
	ErrCodeDuplicateSlot ErrorCode = "DUPLICATE_SLOT"

	// ErrCodeNilPolicy indicates a slot was bound without a policy.
	ErrCodeNilPolicy ErrorCode = "NIL_POLICY"

	// ErrCodeInvalidName indicates an empty slot name.
	ErrCodeInvalidName ErrorCode = "INVALID_NAME"

	// ErrCodeUnknownSlot indicates an accessor named a slot the host does not have.
	ErrCodeUnknownSlot ErrorCode = "UNKNOWN_SLOT"

	// ErrCodeTypeMismatch indicates an accessor used a type other than the slot's.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeUninitialized indicates a late slot was read before its first write.
	ErrCodeUninitialized ErrorCode = "UNINITIALIZED"

	// ErrCodeReadOnly indicates a write to a computed slot.
	ErrCodeReadOnly ErrorCode = "READ_ONLY"
)

// Error is returned by host construction and accessors.
type Error struct {
	Code    ErrorCode
	Host    string
	Slot    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Host != "" && e.Slot != "":
		return fmt.Sprintf("%s: %s (host=%s, slot=%s)", e.Code, e.Message, e.Host, e.Slot)
	case e.Slot != "":
		return fmt.Sprintf("%s: %s (slot=%s)", e.Code, e.Message, e.Slot)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func newError(code ErrorCode, host, slot, format string, args ...any) *Error {
	return &Error{Code: code, Host: host, Slot: slot, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of a slot error anywhere in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsDuplicateSlot reports whether err is a duplicate binding error.
func IsDuplicateSlot(err error) bool {
	return CodeOf(err) == ErrCodeDuplicateSlot
}

// IsUnknownSlot reports whether err names a slot that does not exist.
func IsUnknownSlot(err error) bool {
	return CodeOf(err) == ErrCodeUnknownSlot
}

// IsTypeMismatch reports whether err is an accessor type mismatch.
func IsTypeMismatch(err error) bool {
	return CodeOf(err) == ErrCodeTypeMismatch
}

// IsUninitialized reports whether err is a read of an unset late slot.
func IsUninitialized(err error) bool {
	return CodeOf(err) == ErrCodeUninitialized
}

// IsReadOnly reports whether err is a write to a computed slot.
func IsReadOnly(err error) bool {
	return CodeOf(err) == ErrCodeReadOnly
}
