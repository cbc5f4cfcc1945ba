// Package engine runs compiled host specs.
//
// An Engine owns one live slot.Host per ir.HostSpec. Every slot holds IR
// values under the policy its spec declares (see policy.go), so writes are
// decided by the same slot primitives a Go program would bind by hand.
//
// # Flows
//
// Set starts a flow: the direct write, then every write caused by
// reactions. Writes are applied from a FIFO queue one at a time:
//
//  1. the slot's policy decides what is stored (or rejects the write)
//  2. the result is stamped with the next seq from the logical Clock
//  3. the change is journaled, counted and handed to listeners
//  4. the host's reactions are matched in declaration order; each one that
//     fires queues one follow-on write
//
// # Termination
//
// A reaction that would fire a second time with the same bindings in one
// flow is skipped (CycleDetector). Flows that keep producing new values are
// stopped by the max-steps quota (QuotaEnforcer) with QUOTA_EXCEEDED.
//
// # Determinism
//
// Flows are serialized engine-wide. Seq comes from a logical clock, never
// wall time, and reactions run in declaration order, so the same specs and
// the same Set calls always produce the same journal. Replay relies on this.
package engine
