package engine

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/slotbind/internal/ir"
)

// Mismatch is a journaled change whose replay produced a different result.
type Mismatch struct {
	Seq              int64      `json:"seq"`
	Host             string     `json:"host"`
	Slot             string     `json:"slot"`
	Recorded         ir.IRValue `json:"recorded"`
	Replayed         ir.IRValue `json:"replayed"`
	RecordedAccepted bool       `json:"recorded_accepted"`
	ReplayedAccepted bool       `json:"replayed_accepted"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Applied    int        `json:"applied"`
	Mismatches []Mismatch `json:"mismatches"`
}

// OK reports whether every change replayed to its recorded result.
func (r *ReplayResult) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay rebuilds every host from its initial values and re-applies the
// proposed value of each journaled change, in seq order, through the
// slot policies.
//
// Reactions do not fire: the writes they caused are journaled changes of
// their own and are replayed in place. Nothing is journaled and no listener
// or policy callback output is kept. Policies are pure, so a journal written
// by the same specs replays without mismatches; a mismatch means the specs
// changed since the journal was written.
//
// On success the replayed state replaces the engine's state and the clock
// moves past the highest replayed seq. On error the engine is untouched.
func (e *Engine) Replay(ctx context.Context, changes []ir.Change) (*ReplayResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set, err := buildHostSet(e.specs, slog.New(slog.DiscardHandler))
	if err != nil {
		return nil, err
	}

	ordered := slices.Clone(changes)
	slices.SortStableFunc(ordered, func(a, b ir.Change) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	res := &ReplayResult{Mismatches: []Mismatch{}}
	var lastSeq int64
	for _, c := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, handle, err := set.resolveWrite(c.Host, c.Slot, c.Proposed)
		if err != nil {
			var re *RuntimeError
			if errors.As(err, &re) {
				re.FlowToken = c.FlowToken
			}
			return nil, err
		}
		if c.Proposed == nil {
			return nil, newRuntimeError(ErrCodeTypeMismatch, c.Host, c.Slot, "change %d has no proposed value", c.Seq)
		}

		sc := handle.Write(c.Proposed)
		res.Applied++
		lastSeq = max(lastSeq, c.Seq)

		if sc.Accepted != c.Accepted || !ir.Equal(sc.New, c.Committed) {
			res.Mismatches = append(res.Mismatches, Mismatch{
				Seq:              c.Seq,
				Host:             c.Host,
				Slot:             c.Slot,
				Recorded:         c.Committed,
				Replayed:         sc.New,
				RecordedAccepted: c.Accepted,
				ReplayedAccepted: sc.Accepted,
			})
		}
	}

	e.state.Store(&set)
	e.clock.AdvanceTo(lastSeq)

	e.logger.Info("replay finished", "applied", res.Applied, "mismatches", len(res.Mismatches))
	return res, nil
}
