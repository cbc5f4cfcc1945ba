package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slotbind/internal/ir"
)

func reaction(id, when, thenHost, thenSlot string) ir.ReactionSpec {
	return ir.ReactionSpec{
		ID:   id,
		When: ir.WhenClause{Slot: when, Outcome: ir.OutcomeCommitted},
		Then: ir.ThenClause{Host: thenHost, Slot: thenSlot, From: ir.BindingNew},
	}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles([]ir.HostSpec{{Name: "User"}}))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	specs := []ir.HostSpec{{
		Name: "User",
		Reactions: []ir.ReactionSpec{
			reaction("a-to-b", "a", "", "b"),
			reaction("b-to-c", "b", "", "c"),
		},
	}}
	assert.Empty(t, AnalyzeCycles(specs))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	specs := []ir.HostSpec{{
		Name:      "Counter",
		Reactions: []ir.ReactionSpec{reaction("bump", "n", "", "n")},
	}}

	warnings := AnalyzeCycles(specs)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Counter/bump", "Counter/bump"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "self-triggering")
}

func TestAnalyzeCycles_CrossHost(t *testing.T) {
	specs := []ir.HostSpec{
		{Name: "A", Reactions: []ir.ReactionSpec{reaction("push", "x", "B", "y")}},
		{Name: "B", Reactions: []ir.ReactionSpec{reaction("pull", "y", "A", "x")}},
	}

	warnings := AnalyzeCycles(specs)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A/push", "B/pull", "A/push"}, warnings[0].Path)
	assert.Equal(t, "potential reaction cycle: A/push → B/pull → A/push", warnings[0].Message)
}

func TestAnalyzeCycles_Deterministic(t *testing.T) {
	specs := []ir.HostSpec{
		{Name: "A", Reactions: []ir.ReactionSpec{reaction("p", "x", "B", "y"), reaction("self", "z", "", "z")}},
		{Name: "B", Reactions: []ir.ReactionSpec{reaction("q", "y", "A", "x")}},
	}

	first := AnalyzeCycles(specs)
	for range 20 {
		assert.Equal(t, first, AnalyzeCycles(specs))
	}
	assert.Len(t, first, 2)
}

func TestAnalyzeCycles_Fixtures(t *testing.T) {
	specs, err := LoadDir(specsDir)
	require.NoError(t, err)
	assert.Empty(t, AnalyzeCycles(specs))
}
