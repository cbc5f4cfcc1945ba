package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/slotbind/internal/ir"
)

// createTestStore opens a fresh journal in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestChange builds an accepted int change with a real content-addressed ID.
func createTestChange(flowToken string, seq int64, host, slot string, old, value int64) ir.Change {
	c := ir.Change{
		FlowToken: flowToken,
		Seq:       seq,
		Host:      host,
		Slot:      slot,
		Old:       ir.IRInt(old),
		Proposed:  ir.IRInt(value),
		Committed: ir.IRInt(value),
		Accepted:  true,
		Cause:     ir.CauseExternal,
	}
	c.ID = ir.MustChangeID(c)
	return c
}
