package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/slotbind/internal/ir"
)

// AssertionError is returned when an assertion fails. It carries the trace
// so the failure can be read without rerunning the scenario.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			status := "committed"
			if !ev.Accepted {
				status = "rejected"
			}
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s (%s, %s)\n",
				ev.Seq, ev.Ref(), formatValue(ev.Proposed), formatValue(ev.Committed), status, ev.Cause)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFinalValue:
		return assertFinalValue(result, a)
	case AssertChangeCount:
		return assertCount(result.Trace, a, func(TraceEvent) bool { return true })
	case AssertRejectedCount:
		return assertCount(result.Trace, a, func(ev TraceEvent) bool { return !ev.Accepted })
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertFinalValue compares the slot's value at the end of the run, read
// through its policy.
func assertFinalValue(result *Result, a Assertion) error {
	want, err := ir.FromGo(a.Value)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	got, ok := result.State[a.Slot]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("%s = %s", a.Slot, formatValue(want)),
			Actual:   "no such slot",
		}
	}
	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("%s = %s", a.Slot, formatValue(want)),
			Actual:   fmt.Sprintf("%s = %s", a.Slot, formatValue(got)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertCount counts trace events matching keep, narrowed to a.Slot when set.
func assertCount(trace []TraceEvent, a Assertion, keep func(TraceEvent) bool) error {
	count := 0
	for _, ev := range trace {
		if a.Slot != "" && ev.Ref() != a.Slot {
			continue
		}
		if keep(ev) {
			count++
		}
	}
	if count == *a.Count {
		return nil
	}

	scope := "all slots"
	if a.Slot != "" {
		scope = a.Slot
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d changes on %s", *a.Count, scope),
		Actual:   fmt.Sprintf("%d changes", count),
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first committed change of each listed
// slot appears in the listed order. Changes to other slots may intervene.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if !ev.Accepted {
			continue
		}
		if _, seen := positions[ev.Ref()]; !seen {
			positions[ev.Ref()] = i + 1
		}
	}

	for _, ref := range a.Slots {
		if positions[ref] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("committed changes on %v", a.Slots),
				Actual:   fmt.Sprintf("no committed change on %s", ref),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Slots); i++ {
		prev, curr := a.Slots[i-1], a.Slots[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("slots in order: %v", a.Slots),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}
