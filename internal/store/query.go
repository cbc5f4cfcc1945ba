package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/slotbind/internal/ir"
)

// Outcome filters for Query.
const (
	OutcomeAny       = ""
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
)

// Query selects journaled changes. Zero-valued fields do not filter; set
// fields are ANDed together.
type Query struct {
	FlowToken string
	Host      string
	Slot      string // requires Host
	Cause     string // exact cause, or a prefix ending in ":" such as "reaction:"
	Outcome   string // OutcomeAny, OutcomeCommitted or OutcomeRejected
	AfterSeq  int64  // only changes with seq > AfterSeq
	Last      int    // keep only the newest Last changes; 0 keeps all
}

// predicate is one "column op ?" term with its parameter.
type predicate struct {
	sql   string
	param any
}

// compileQuery turns q into parameterized SQL. Values are never
// interpolated, and every query ends in changeOrder so results are stable.
func compileQuery(q Query) (string, []any, error) {
	if q.Slot != "" && q.Host == "" {
		return "", nil, fmt.Errorf("query: slot %q given without host", q.Slot)
	}
	if q.Last < 0 {
		return "", nil, fmt.Errorf("query: negative limit %d", q.Last)
	}

	var preds []predicate
	if q.FlowToken != "" {
		preds = append(preds, predicate{"flow_token = ?", q.FlowToken})
	}
	if q.Host != "" {
		preds = append(preds, predicate{"host = ?", q.Host})
	}
	if q.Slot != "" {
		preds = append(preds, predicate{"slot = ?", q.Slot})
	}
	if q.Cause != "" {
		if strings.HasSuffix(q.Cause, ":") {
			// substr avoids LIKE, whose wildcards a host name could contain.
			// SQLite counts characters, not bytes.
			n := utf8.RuneCountInString(q.Cause)
			preds = append(preds, predicate{"substr(cause, 1, " + fmt.Sprint(n) + ") = ?", q.Cause})
		} else {
			preds = append(preds, predicate{"cause = ?", q.Cause})
		}
	}
	switch q.Outcome {
	case OutcomeAny:
	case OutcomeCommitted:
		preds = append(preds, predicate{"accepted = ?", 1})
	case OutcomeRejected:
		preds = append(preds, predicate{"accepted = ?", 0})
	default:
		return "", nil, fmt.Errorf("query: unknown outcome %q", q.Outcome)
	}
	if q.AfterSeq > 0 {
		preds = append(preds, predicate{"seq > ?", q.AfterSeq})
	}

	where, params := compileAnd(preds)
	sql := `SELECT ` + changeColumns + ` FROM changes` + where
	if q.Last == 0 {
		return sql + ` ` + changeOrder, params, nil
	}

	// Newest Last rows, returned oldest first like every other read.
	sql = `SELECT ` + changeColumns + ` FROM (` + sql + ` ORDER BY seq DESC, id COLLATE BINARY DESC LIMIT ?) ` + changeOrder
	return sql, append(params, q.Last), nil
}

// compileAnd joins predicates with AND. No predicates means no WHERE.
func compileAnd(preds []predicate) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	parts := make([]string, len(preds))
	params := make([]any, len(preds))
	for i, p := range preds {
		parts[i] = p.sql
		params[i] = p.param
	}
	return " WHERE " + strings.Join(parts, " AND "), params
}

// QueryChanges returns the changes matching q in seq order. Returns an
// empty slice (not nil) when nothing matches.
func (s *Store) QueryChanges(ctx context.Context, q Query) ([]ir.Change, error) {
	sql, params, err := compileQuery(q)
	if err != nil {
		return nil, err
	}
	return s.queryChanges(ctx, "query changes", sql, params...)
}
