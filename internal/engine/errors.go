package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while the engine applies a write.
//
// A rejected write is not a RuntimeError; Change.Accepted reports it.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// FlowToken identifies the affected flow, when one was started.
	FlowToken string

	// Host and Slot identify the target of the failing write.
	Host string
	Slot string

	// ReactionID is set when a reaction produced the failing write.
	ReactionID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownHost indicates no host with the given name exists.
	ErrCodeUnknownHost RuntimeErrorCode = "UNKNOWN_HOST"

	// ErrCodeUnknownSlot indicates the host declares no such slot.
	ErrCodeUnknownSlot RuntimeErrorCode = "UNKNOWN_SLOT"

	// ErrCodeTypeMismatch indicates a value of the wrong IR type.
	ErrCodeTypeMismatch RuntimeErrorCode = "TYPE_MISMATCH"

	// ErrCodeQuotaExceeded indicates the flow exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeCycleDetected indicates the same (reaction, binding) would fire twice.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeJournalFailed indicates the journal refused a change.
	ErrCodeJournalFailed RuntimeErrorCode = "JOURNAL_FAILED"

	// ErrCodeDuplicateHost indicates two specs share a host name.
	ErrCodeDuplicateHost RuntimeErrorCode = "DUPLICATE_HOST"

	// ErrCodeInvalidSpec indicates a spec failed validation or could not be built.
	ErrCodeInvalidSpec RuntimeErrorCode = "INVALID_SPEC"

	// ErrCodeReadOnly indicates a write to a computed slot.
	ErrCodeReadOnly RuntimeErrorCode = "READ_ONLY"

	// ErrCodeUninitialized indicates a read of a late slot before its first
	// write, directly or through a computed slot's argument.
	ErrCodeUninitialized RuntimeErrorCode = "UNINITIALIZED"

	// ErrCodeComputeFailed indicates a computed slot could not derive its value.
	ErrCodeComputeFailed RuntimeErrorCode = "COMPUTE_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	target := e.Host
	if e.Slot != "" {
		target += "." + e.Slot
	}
	switch {
	case e.FlowToken != "" && e.ReactionID != "":
		return fmt.Sprintf("%s: %s (flow=%s, reaction=%s)", e.Code, e.Message, e.FlowToken, e.ReactionID)
	case e.FlowToken != "":
		return fmt.Sprintf("%s: %s (flow=%s)", e.Code, e.Message, e.FlowToken)
	case target != "":
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, target)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnknownHost returns true if err reports an unknown host.
func IsUnknownHost(err error) bool { return hasCode(err, ErrCodeUnknownHost) }

// IsUnknownSlot returns true if err reports an unknown slot.
func IsUnknownSlot(err error) bool { return hasCode(err, ErrCodeUnknownSlot) }

// IsTypeMismatch returns true if err reports a value of the wrong type.
func IsTypeMismatch(err error) bool { return hasCode(err, ErrCodeTypeMismatch) }

// IsReadOnly returns true if err reports a write to a computed slot.
func IsReadOnly(err error) bool { return hasCode(err, ErrCodeReadOnly) }

// IsUninitialized returns true if err reports a read of an unset late slot.
func IsUninitialized(err error) bool { return hasCode(err, ErrCodeUninitialized) }

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool { return hasCode(err, ErrCodeCycleDetected) }

// IsJournalError returns true if the journal rejected a change.
func IsJournalError(err error) bool { return hasCode(err, ErrCodeJournalFailed) }

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewCycleError creates a RuntimeError for cycle detection.
func NewCycleError(flowToken, reactionID, bindingHash string) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeCycleDetected,
		Message:    "reaction would fire same binding twice in flow",
		FlowToken:  flowToken,
		ReactionID: reactionID,
		Details:    map[string]string{"binding_hash": bindingHash},
	}
}

// NewQuotaError creates a RuntimeError for quota exceeded. It wraps the
// enforcer's StepsExceededError.
func NewQuotaError(cause *StepsExceededError) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeQuotaExceeded,
		Message:   fmt.Sprintf("flow exceeded max steps (%d > %d)", cause.Steps, cause.Limit),
		FlowToken: cause.FlowToken,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", cause.Steps),
			"max_steps": fmt.Sprintf("%d", cause.Limit),
		},
	}
}

func newRuntimeError(code RuntimeErrorCode, host, slotName, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Host:    host,
		Slot:    slotName,
	}
}
