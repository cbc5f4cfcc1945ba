package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slotbind/internal/ir"
	"github.com/roach88/slotbind/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func counterScenario(t *testing.T) *Scenario {
	t.Helper()
	dir := testutil.SpecDir(t, testutil.CounterSpec)
	return &Scenario{
		Name:        "inline_counter",
		Description: "one accepted and one vetoed write",
		Specs:       []string{dir},
		Steps: []Step{
			{Set: "Counter.n", Value: 3, Expect: &ExpectClause{Accepted: ptr(true), Value: 3, Changes: ptr(1)}},
			{Set: "Counter.n", Value: 99, Expect: &ExpectClause{Accepted: ptr(false), Value: 3}},
			{Get: "Counter.n", Expect: &ExpectClause{Value: 3}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalValue, Slot: "Counter.n", Value: 3},
			{Type: AssertRejectedCount, Slot: "Counter.n", Count: ptr(1)},
			{Type: AssertChangeCount, Count: ptr(2)},
		},
	}
}

func TestRun_Counter(t *testing.T) {
	result, err := Run(counterScenario(t))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "test-flow-1", result.Trace[0].FlowToken)
	assert.Equal(t, "test-flow-2", result.Trace[1].FlowToken)
	assert.False(t, result.Trace[1].Accepted)
	assert.Equal(t, ir.IRInt(99), result.Trace[1].Proposed)
	assert.Equal(t, ir.IRInt(3), result.State["Counter.n"])
}

func TestRun_Deterministic(t *testing.T) {
	s := counterScenario(t)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_StepMismatchesReported(t *testing.T) {
	s := counterScenario(t)
	s.Steps = []Step{
		{Set: "Counter.n", Value: 50, Expect: &ExpectClause{Accepted: ptr(true), Value: 50, Changes: ptr(2)}},
		{Get: "Counter.n", Expect: &ExpectClause{Value: 7}},
	}
	s.Assertions = nil

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected accepted=true, got false")
	assert.Contains(t, result.Errors[1], "expected committed value 50, got 0")
	assert.Contains(t, result.Errors[2], "expected 2 changes in flow, got 1")
	assert.Contains(t, result.Errors[3], "expected value 7, got 0")
}

func TestRun_ExpectedErrors(t *testing.T) {
	dir := testutil.SpecDir(t, testutil.CounterSpec)
	s := &Scenario{
		Name:        "errors",
		Description: "boundary errors",
		Specs:       []string{dir},
		Steps: []Step{
			{Get: "Nowhere.n", Expect: &ExpectClause{Error: "UNKNOWN_HOST"}},
			{Set: "Counter.missing", Value: 1, Expect: &ExpectClause{Error: "UNKNOWN_SLOT"}},
			{Set: "Counter.n", Value: "three", Expect: &ExpectClause{Error: "TYPE_MISMATCH"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace)
}

func TestRun_UnexpectedAndMissingErrors(t *testing.T) {
	dir := testutil.SpecDir(t, testutil.CounterSpec)
	s := &Scenario{
		Name:        "errors",
		Description: "wrong expectations",
		Specs:       []string{dir},
		Steps: []Step{
			{Get: "Nowhere.n"},
			{Set: "Counter.n", Value: 1, Expect: &ExpectClause{Error: "QUOTA_EXCEEDED"}},
			{Set: "Counter.n", Value: "x", Expect: &ExpectClause{Error: "UNKNOWN_SLOT"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)

	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Contains(t, result.Errors[1], "expected error QUOTA_EXCEEDED, got none")
	assert.Contains(t, result.Errors[2], "expected error UNKNOWN_SLOT, got")
}

func TestRun_QuotaStopsCycle(t *testing.T) {
	dir := testutil.SpecDir(t, testutil.PingPongSpec)
	s := &Scenario{
		Name:        "quota",
		Description: "ping-pong stopped by max steps",
		Specs:       []string{dir},
		MaxSteps:    2,
		Steps: []Step{
			{Set: "Ping.v", Value: 1, Expect: &ExpectClause{Error: "QUOTA_EXCEEDED"}},
		},
		Assertions: []Assertion{
			{Type: AssertChangeCount, Count: ptr(2)},
			{Type: AssertTraceOrder, Slots: []string{"Ping.v", "Pong.v"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CycleSkipEndsFlow(t *testing.T) {
	dir := testutil.SpecDir(t, testutil.PingPongSpec)
	s := &Scenario{
		Name:        "cycle",
		Description: "ping-pong without quota pressure",
		Specs:       []string{dir},
		Steps:       []Step{{Set: "Ping.v", Value: 1}},
		Assertions: []Assertion{
			{Type: AssertFinalValue, Slot: "Ping.v", Value: 1},
			{Type: AssertFinalValue, Slot: "Pong.v", Value: 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_BadSpecs(t *testing.T) {
	dir := testutil.SpecDir(t, `host: Broken: slot: x: {type: "float", initial: 0}`)
	s := &Scenario{
		Name:        "broken",
		Description: "invalid slot type",
		Specs:       []string{dir},
		Steps:       []Step{{Get: "Broken.x"}},
	}

	_, err := Run(s)
	assert.Error(t, err)
}

func TestRun_InvalidValue(t *testing.T) {
	s := counterScenario(t)
	s.Steps = []Step{{Set: "Counter.n", Value: 1.5}}

	_, err := Run(s)
	assert.ErrorContains(t, err, "floats are forbidden")
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(counterScenario(t), WithLogger(logger))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "step completed")
	assert.Contains(t, buf.String(), "change applied")
}

func TestRun_ExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenarioWithBasePath(path, exampleSpecsDir)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
