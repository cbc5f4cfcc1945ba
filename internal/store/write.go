package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/slotbind/internal/ir"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteChange appends a change to the journal.
//
// Uses ON CONFLICT(id) DO NOTHING: the ID is content-addressed, so writing
// the same change twice is a no-op. Other constraint violations still fail.
// Values are stored as canonical JSON so replays compare byte for byte.
func (s *Store) WriteChange(ctx context.Context, c ir.Change) error {
	return writeChange(ctx, s.db, c)
}

// WriteChanges appends changes in one transaction: either all are written
// or none. Used to import a journal exported from another store.
func (s *Store) WriteChanges(ctx context.Context, changes []ir.Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write changes: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, c := range changes {
		if err := writeChange(ctx, tx, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write changes: commit: %w", err)
	}
	return nil
}

func writeChange(ctx context.Context, db execer, c ir.Change) error {
	if c.ID == "" {
		return fmt.Errorf("write change: missing id (seq %d)", c.Seq)
	}
	oldJSON, err := marshalOptional("old", c.Old)
	if err != nil {
		return fmt.Errorf("write change: %w", err)
	}
	proposedJSON, err := marshalValue("proposed", c.Proposed)
	if err != nil {
		return fmt.Errorf("write change: %w", err)
	}
	committedJSON, err := marshalOptional("committed", c.Committed)
	if err != nil {
		return fmt.Errorf("write change: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO changes
		(id, flow_token, seq, host, slot, old_value, proposed, committed, accepted, cause, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.FlowToken,
		c.Seq,
		c.Host,
		c.Slot,
		oldJSON,
		proposedJSON,
		committedJSON,
		c.Accepted,
		c.Cause,
		ir.EngineVersion,
		ir.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write change: %w", err)
	}
	return nil
}
