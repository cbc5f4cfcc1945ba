package store

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/roach88/slotbind/internal/ir"
)

func TestQueryChanges(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)

	reaction := createTestChange("flow-c", 6, "User", "adult", 0, 1)
	reaction.Cause = ir.ReactionCause("User/adult-at-18")
	reaction.ID = ir.MustChangeID(reaction)
	if err := s.WriteChange(context.Background(), reaction); err != nil {
		t.Fatalf("WriteChange() failed: %v", err)
	}

	tests := []struct {
		name  string
		query Query
		want  []int64
	}{
		{"everything", Query{}, []int64{1, 2, 3, 4, 5, 6}},
		{"flow", Query{FlowToken: "flow-a"}, []int64{1, 2}},
		{"host", Query{Host: "User"}, []int64{1, 2, 5, 6}},
		{"slot", Query{Host: "User", Slot: "age"}, []int64{1, 2, 5}},
		{"rejected", Query{Outcome: OutcomeRejected}, []int64{2}},
		{"committed slot", Query{Host: "User", Slot: "age", Outcome: OutcomeCommitted}, []int64{1, 5}},
		{"cause prefix", Query{Cause: "reaction:"}, []int64{6}},
		{"exact cause", Query{Cause: ir.CauseExternal}, []int64{1, 2, 3, 4, 5}},
		{"after seq", Query{AfterSeq: 4}, []int64{5, 6}},
		{"last", Query{Host: "User", Last: 2}, []int64{5, 6}},
		{"last beyond size", Query{FlowToken: "flow-b", Last: 10}, []int64{3, 4}},
		{"no match", Query{Host: "Nowhere"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryChanges(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("QueryChanges() failed: %v", err)
			}
			if got == nil {
				t.Fatal("QueryChanges() returned nil slice")
			}
			if !slices.Equal(seqs(got), tt.want) {
				t.Errorf("QueryChanges() seqs = %v, want %v", seqs(got), tt.want)
			}
		})
	}
}

func TestQueryChanges_NonASCIICausePrefix(t *testing.T) {
	s := createTestStore(t)

	ascii := createTestChange("flow-u", 1, "Café", "menü", 0, 1)
	ascii.Cause = "größer"
	ascii.ID = ir.MustChangeID(ascii)

	prefixed := createTestChange("flow-u", 2, "Café", "menü", 1, 2)
	prefixed.Cause = "größe:kleiner"
	prefixed.ID = ir.MustChangeID(prefixed)

	for _, c := range []ir.Change{ascii, prefixed} {
		if err := s.WriteChange(context.Background(), c); err != nil {
			t.Fatalf("WriteChange() failed: %v", err)
		}
	}

	// "größe:" is 6 characters but 8 bytes.
	got, err := s.QueryChanges(context.Background(), Query{Cause: "größe:"})
	if err != nil {
		t.Fatalf("QueryChanges() failed: %v", err)
	}
	if !slices.Equal(seqs(got), []int64{2}) {
		t.Errorf("QueryChanges(größe:) seqs = %v, want [2]", seqs(got))
	}
}

func TestQueryChanges_Invalid(t *testing.T) {
	s := createTestStore(t)

	for _, q := range []Query{
		{Slot: "age"},
		{Outcome: "maybe"},
		{Last: -1},
	} {
		if _, err := s.QueryChanges(context.Background(), q); err == nil {
			t.Errorf("QueryChanges(%+v) succeeded, want error", q)
		}
	}
}

func TestCompileQuery_Parameterized(t *testing.T) {
	sql, params, err := compileQuery(Query{Host: "User'; DROP TABLE changes; --", Outcome: OutcomeRejected, Last: 3})
	if err != nil {
		t.Fatalf("compileQuery() failed: %v", err)
	}
	if strings.Contains(sql, "DROP") {
		t.Errorf("value interpolated into SQL: %s", sql)
	}
	if !strings.HasSuffix(sql, changeOrder) {
		t.Errorf("SQL does not end in the stable order: %s", sql)
	}
	if want := []any{"User'; DROP TABLE changes; --", 0, 3}; !slices.Equal(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}
