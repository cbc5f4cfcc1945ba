package engine

import "github.com/roach88/slotbind/internal/ir"

// pendingWrite is one write waiting to be applied in the current flow.
type pendingWrite struct {
	host     string
	slot     string
	value    ir.IRValue
	reaction string // "Host/id" of the reaction that queued it; "" for Set
}

func (w pendingWrite) cause() string {
	if w.reaction == "" {
		return ir.CauseExternal
	}
	return ir.ReactionCause(w.reaction)
}

// writeQueue is the FIFO of writes produced while a flow runs.
//
// The queue is unbounded so a cascade of reactions can enqueue any number of
// follow-on writes; the quota bounds how many get applied. It is only used
// under the engine's write lock and needs no locking of its own.
type writeQueue struct {
	writes []pendingWrite
}

func newWriteQueue() *writeQueue {
	return &writeQueue{writes: make([]pendingWrite, 0, 16)}
}

// push adds w to the back of the queue.
func (q *writeQueue) push(w pendingWrite) {
	q.writes = append(q.writes, w)
}

// pop removes and returns the front write.
func (q *writeQueue) pop() (pendingWrite, bool) {
	if len(q.writes) == 0 {
		return pendingWrite{}, false
	}
	w := q.writes[0]
	// Drop the slot's reference to the value so the backing array doesn't
	// pin it after the write is applied.
	q.writes[0] = pendingWrite{}
	if len(q.writes) == 1 {
		q.writes = q.writes[:0]
	} else {
		q.writes = q.writes[1:]
	}
	return w, true
}

// len returns the number of queued writes.
func (q *writeQueue) len() int {
	return len(q.writes)
}
