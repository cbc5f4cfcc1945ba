// Package slot implements delegated slots: named, typed storage locations
// whose reads and writes are intercepted by a policy bound at construction.
//
// A Host owns one or more slots. Each slot is bound to exactly one Policy
// for its whole lifetime; there is no rebinding and no path to the stored
// value that bypasses the policy.
//
// # Policies
//
// The built-in policies cover the usual delegation patterns:
//
//   - Plain: pass-through get/set
//   - Observable: commit, then notify a callback with (name, old, new)
//   - Vetoable: commit only if a predicate accepts (name, old, proposed)
//   - Validating: Vetoable plus a hook that runs on rejection
//   - Transforming: store transform(proposed)
//   - Presenting: leave the stored value alone, transform it on read
//   - Chain: compose several policies into one
//
// Policies can opt into extra capabilities by implementing Initializer,
// Committer or Rejecter.
//
// # Write Sequence
//
// A write is one critical section per slot:
//
//  1. load the current value (old)
//  2. OnWrite(name, old, proposed) decides the value and whether it is accepted
//  3. store the value (accepted writes only)
//  4. AfterCommit or OnReject
//
// Writers on the same slot are serialized. Readers never take the write lock,
// so a callback that reads its own slot during step 4 sees the committed value.
// A callback must not write its own slot; that would deadlock.
//
// Rejection is not an error. Write returns a Change whose Accepted field
// reports what happened.
//
// # Slot Kinds
//
// Bind declares a slot with an initial value. BindLate declares one with
// none: Get fails with UNINITIALIZED until the first accepted write.
// BindComputed declares a read-only slot whose value is derived from the
// host on every read, and BindLazy one derived once and then cached. Set on
// either fails with READ_ONLY.
//
// # Usage
//
//	h, err := slot.NewHost("user",
//	    slot.Bind("name", "init", slot.Observable(func(name, old, new string) {
//	        log.Printf("%s: %s -> %s", name, old, new)
//	    })),
//	    slot.Bind("age", 0, slot.Vetoable(func(_ string, _, v int) bool {
//	        return v >= 0
//	    })),
//	)
//	if err != nil {
//	    return err
//	}
//	slot.Set(h, "age", 25) // accepted
//	slot.Set(h, "age", -5) // rejected, age stays 25
package slot
