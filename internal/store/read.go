package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/slotbind/internal/ir"
)

const changeColumns = `id, flow_token, seq, host, slot, old_value, proposed, committed, accepted, cause`

// Every multi-row read orders by (seq, id) so results are identical across
// runs and replays.
const changeOrder = `ORDER BY seq ASC, id COLLATE BINARY ASC`

// ReadFlow returns the changes of one flow in seq order.
// Returns an empty slice (not nil) if the flow has no changes.
func (s *Store) ReadFlow(ctx context.Context, flowToken string) ([]ir.Change, error) {
	if flowToken == "" {
		return []ir.Change{}, nil
	}
	return s.QueryChanges(ctx, Query{FlowToken: flowToken})
}

// ReadChanges returns every change touching host, or every change in the
// journal when host is empty. This is the input Replay expects.
func (s *Store) ReadChanges(ctx context.Context, host string) ([]ir.Change, error) {
	return s.QueryChanges(ctx, Query{Host: host})
}

// ReadSlotHistory returns every write to host.slot, rejected ones included.
func (s *Store) ReadSlotHistory(ctx context.Context, host, slot string) ([]ir.Change, error) {
	if host == "" || slot == "" {
		return []ir.Change{}, nil
	}
	return s.QueryChanges(ctx, Query{Host: host, Slot: slot})
}

// ReadChange retrieves a single change by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadChange(ctx context.Context, id string) (ir.Change, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+changeColumns+` FROM changes WHERE id = ?`, id)
	return scanChange(row)
}

// FlowSummary describes one flow in the journal.
type FlowSummary struct {
	FlowToken string `json:"flow_token"`
	FirstSeq  int64  `json:"first_seq"`
	LastSeq   int64  `json:"last_seq"`
	Changes   int    `json:"changes"`
	Rejected  int    `json:"rejected"`
}

// ListFlows summarizes every flow, oldest first.
func (s *Store) ListFlows(ctx context.Context) ([]FlowSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_token, MIN(seq), MAX(seq), COUNT(*), SUM(CASE WHEN accepted = 0 THEN 1 ELSE 0 END)
		FROM changes
		GROUP BY flow_token
		ORDER BY MIN(seq) ASC, flow_token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	flows := []FlowSummary{}
	for rows.Next() {
		var f FlowSummary
		if err := rows.Scan(&f.FlowToken, &f.FirstSeq, &f.LastSeq, &f.Changes, &f.Rejected); err != nil {
			return nil, fmt.Errorf("scan flow summary: %w", err)
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flows: %w", err)
	}
	return flows, nil
}

// ListFlowTokens returns all distinct flow tokens, oldest flow first.
func (s *Store) ListFlowTokens(ctx context.Context) ([]string, error) {
	flows, err := s.ListFlows(ctx)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, len(flows))
	for i, f := range flows {
		tokens[i] = f.FlowToken
	}
	return tokens, nil
}

// LastSeq returns the highest seq in the journal, or 0 when it is empty.
// An engine continuing this journal starts its clock here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM changes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// CountChanges returns the number of journaled changes.
func (s *Store) CountChanges(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM changes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count changes: %w", err)
	}
	return n, nil
}

func (s *Store) queryChanges(ctx context.Context, op, query string, args ...any) ([]ir.Change, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	changes := []ir.Change{}
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return changes, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChange(row rowScanner) (ir.Change, error) {
	var (
		c                   ir.Change
		proposedJSON        string
		oldJSON, commitJSON sql.NullString
	)
	if err := row.Scan(
		&c.ID,
		&c.FlowToken,
		&c.Seq,
		&c.Host,
		&c.Slot,
		&oldJSON,
		&proposedJSON,
		&commitJSON,
		&c.Accepted,
		&c.Cause,
	); err != nil {
		if err == sql.ErrNoRows {
			return ir.Change{}, err
		}
		return ir.Change{}, fmt.Errorf("scan change: %w", err)
	}

	var err error
	if c.Old, err = unmarshalOptional("old", oldJSON); err != nil {
		return ir.Change{}, err
	}
	if c.Proposed, err = unmarshalValue("proposed", proposedJSON); err != nil {
		return ir.Change{}, err
	}
	if c.Committed, err = unmarshalOptional("committed", commitJSON); err != nil {
		return ir.Change{}, err
	}
	return c, nil
}
