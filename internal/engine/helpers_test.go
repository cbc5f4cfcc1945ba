package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/slotbind/internal/ir"
)

func plain() ir.PolicySpec { return ir.PolicySpec{Kind: ir.PolicyPlain} }

func intSlot(name string, initial int64, p ir.PolicySpec) ir.SlotSpec {
	return ir.SlotSpec{Name: name, Type: ir.TypeInt, Initial: ir.IRInt(initial), Policy: p}
}

func stringSlot(name, initial string, p ir.PolicySpec) ir.SlotSpec {
	return ir.SlotSpec{Name: name, Type: ir.TypeString, Initial: ir.IRString(initial), Policy: p}
}

func boolSlot(name string, initial bool, p ir.PolicySpec) ir.SlotSpec {
	return ir.SlotSpec{Name: name, Type: ir.TypeBool, Initial: ir.IRBool(initial), Policy: p}
}

func lateSlot(name, typ string, p ir.PolicySpec) ir.SlotSpec {
	return ir.SlotSpec{Name: name, Type: typ, Policy: p}
}

func computedSlot(name, typ string, c ir.ComputeSpec) ir.SlotSpec {
	return ir.SlotSpec{Name: name, Type: typ, Compute: &c, Policy: plain()}
}

func when(slot string) ir.WhenClause {
	return ir.WhenClause{Slot: slot, Outcome: ir.OutcomeCommitted}
}

func where(op string, v ir.IRValue) *ir.ConditionSpec {
	return &ir.ConditionSpec{Binding: ir.BindingNew, Rule: ir.RuleSpec{Op: op, Value: v}}
}

// userSpec mirrors testdata/specs/user.cue.
func userSpec() []ir.HostSpec {
	return []ir.HostSpec{{
		Name: "User",
		Slots: []ir.SlotSpec{
			stringSlot("name", "init", ir.PolicySpec{Kind: ir.PolicyObservable, Message: "name changed"}),
			intSlot("age", 0, ir.PolicySpec{
				Kind:  ir.PolicyVetoable,
				Rules: []ir.RuleSpec{{Op: ir.RuleMin, Value: ir.IRInt(0)}},
			}),
			stringSlot("title", "", ir.PolicySpec{
				Kind:      ir.PolicyTransforming,
				Transform: &ir.TransformSpec{Name: ir.TransformUpper},
			}),
			stringSlot("email", "", ir.PolicySpec{
				Kind: ir.PolicyChain,
				Steps: []ir.PolicySpec{
					{
						Kind:    ir.PolicyValidating,
						Rules:   []ir.RuleSpec{{Op: ir.RuleContains, Value: ir.IRString("@")}},
						Message: "invalid email",
					},
					{Kind: ir.PolicyTransforming, Transform: &ir.TransformSpec{Name: ir.TransformLower}},
				},
			}),
			boolSlot("adult", false, plain()),
		},
		Reactions: []ir.ReactionSpec{
			{
				ID:    "adult-at-18",
				When:  when("age"),
				Where: where(ir.RuleMin, ir.IRInt(18)),
				Then:  ir.ThenClause{Slot: "adult", Value: ir.IRBool(true)},
			},
			{
				ID:    "minor-below-18",
				When:  when("age"),
				Where: where(ir.RuleMax, ir.IRInt(17)),
				Then:  ir.ThenClause{Slot: "adult", Value: ir.IRBool(false)},
			},
		},
	}}
}

// deviceSpecs mirrors testdata/specs/devices.cue.
func deviceSpecs() []ir.HostSpec {
	clamp := ir.PolicySpec{
		Kind:      ir.PolicyTransforming,
		Transform: &ir.TransformSpec{Name: ir.TransformClamp, Min: 0, Max: 1000},
	}
	return []ir.HostSpec{
		{
			Name: "Rectangle",
			Slots: []ir.SlotSpec{
				intSlot("width", 0, clamp),
				intSlot("height", 0, clamp),
				stringSlot("description", "none", ir.PolicySpec{
					Kind:      ir.PolicyPresenting,
					Transform: &ir.TransformSpec{Name: ir.TransformPrefix, Text: "rect: "},
				}),
				lateSlot("label", ir.TypeString, ir.PolicySpec{
					Kind:  ir.PolicyVetoable,
					Rules: []ir.RuleSpec{{Op: ir.RuleNotEmpty}},
				}),
				computedSlot("area", ir.TypeInt, ir.ComputeSpec{Op: ir.ComputeProduct, Args: []string{"width", "height"}}),
			},
		},
		{
			Name: "Thermostat",
			Slots: []ir.SlotSpec{
				intSlot("temperature", 20, ir.PolicySpec{Kind: ir.PolicyObservable, Message: "temperature changed"}),
				boolSlot("alarm", false, plain()),
			},
			Reactions: []ir.ReactionSpec{
				{
					ID:    "overheat",
					When:  when("temperature"),
					Where: where(ir.RuleMin, ir.IRInt(26)),
					Then:  ir.ThenClause{Slot: "alarm", Value: ir.IRBool(true)},
				},
				{
					ID:   "mirror",
					When: when("temperature"),
					Then: ir.ThenClause{Host: "Display", Slot: "reading", From: ir.BindingNew},
				},
			},
		},
		{
			Name:  "Display",
			Slots: []ir.SlotSpec{intSlot("reading", 0, plain())},
		},
	}
}

// pingPongSpec has two reactions that copy a value back and forth.
func pingPongSpec() []ir.HostSpec {
	return []ir.HostSpec{{
		Name:  "Ping",
		Slots: []ir.SlotSpec{intSlot("a", 0, plain()), intSlot("b", 0, plain())},
		Reactions: []ir.ReactionSpec{
			{ID: "a-to-b", When: when("a"), Then: ir.ThenClause{Slot: "b", From: ir.BindingNew}},
			{ID: "b-to-a", When: when("b"), Then: ir.ThenClause{Slot: "a", From: ir.BindingNew}},
		},
	}}
}

func newTestEngine(t *testing.T, specs []ir.HostSpec, opts ...Option) *Engine {
	t.Helper()
	e, err := New(specs, opts...)
	require.NoError(t, err)
	return e
}

// bufferLogger returns a JSON logger writing to the returned buffer.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// memJournal collects changes; fail makes WriteChange return an error once
// that many changes have been written.
type memJournal struct {
	mu      sync.Mutex
	changes []ir.Change
	fail    int
}

func (j *memJournal) WriteChange(_ context.Context, c ir.Change) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail > 0 && len(j.changes) >= j.fail {
		return errors.New("disk full")
	}
	j.changes = append(j.changes, c)
	return nil
}

type skip struct{ host, reaction, reason string }

// countingRecorder records every Recorder call.
type countingRecorder struct {
	applied []ir.Change
	fired   []string
	skipped []skip
	flows   int
	errs    []error
}

func (r *countingRecorder) ChangeApplied(c ir.Change) { r.applied = append(r.applied, c) }

func (r *countingRecorder) ReactionFired(host, id string) {
	r.fired = append(r.fired, host+"/"+id)
}

func (r *countingRecorder) ReactionSkipped(host, id, reason string) {
	r.skipped = append(r.skipped, skip{host, id, reason})
}

func (r *countingRecorder) FlowFinished(_ int, err error) {
	r.flows++
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func testDiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
