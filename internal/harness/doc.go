// Package harness runs YAML scenarios against the slot engine.
//
// A scenario names CUE host specs, a list of steps (set or get one
// "Host.slot", with optional expectations) and assertions over the run.
// Each run builds a fresh engine that journals into an in-memory SQLite
// store; the trace is read back from that journal, so a scenario checks
// exactly what the store would hold in production.
//
// Runs are deterministic. Flow tokens come from a counter
// ("<flow_token>-1", "<flow_token>-2", ...) and seq numbers start at 1, which
// makes traces suitable for golden comparison:
//
//	result, err := harness.RunWithGolden(t, scenario)
//
// Golden files live in testdata/golden and hold one canonical JSON line
// per change.
//
// Assertion types:
//
//   - final_value: a slot's value after the run, read through its policy
//   - change_count: number of journaled changes, optionally for one slot
//   - rejected_count: number of rejected changes, optionally for one slot
//   - trace_order: first committed changes of the listed slots appear in order
package harness
