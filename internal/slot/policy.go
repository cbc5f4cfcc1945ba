package slot

// Policy governs every read and write of one slot.
//
// OnWrite receives the value currently stored (old) and the value the caller
// asked for (proposed). It returns the value to store and whether the write
// is accepted. When accepted is false the returned value is ignored and the
// slot keeps old.
//
// OnRead receives the stored value and returns what the caller sees.
type Policy[T any] interface {
	OnRead(name string, stored T) T
	OnWrite(name string, old, proposed T) (T, bool)
}

// Initializer is implemented by policies that define initialization
// semantics. Init runs exactly once, at host construction, and its result
// becomes the slot's first stored value.
type Initializer[T any] interface {
	Init(name string, initial T) T
}

// Committer is implemented by policies that react to a committed write.
// AfterCommit runs after the new value is stored, while the slot's write
// lock is still held.
type Committer[T any] interface {
	AfterCommit(name string, old, committed T)
}

// Rejecter is implemented by policies that react to a rejected write.
type Rejecter[T any] interface {
	OnReject(name string, old, proposed T)
}

// Change describes the outcome of one write.
type Change[T any] struct {
	Slot     string
	Old      T
	Proposed T
	// New is the value stored after the write. Equal to Old when rejected.
	New      T
	Accepted bool
}
