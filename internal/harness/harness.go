package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/slotbind/internal/compiler"
	"github.com/roach88/slotbind/internal/engine"
	"github.com/roach88/slotbind/internal/ir"
	"github.com/roach88/slotbind/internal/store"
)

// Harness runs one scenario against a real engine journaling into a fresh
// in-memory store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes engine and harness logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario and returns its result. An error means the
// scenario could not run at all (bad specs, store failure); failed
// expectations and assertions are reported in Result.Errors instead.
//
// Flow tokens come from a counter, and each run starts from seq 0 in an
// empty database, so the same scenario always yields the same trace.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	specs, err := LoadSpecs(scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	token := scenario.FlowToken
	if token == "" {
		token = DefaultFlowToken
	}
	engineOpts := []engine.Option{
		engine.WithJournal(st),
		engine.WithFlowGenerator(engine.NewSequenceGenerator(token)),
		engine.WithLogger(cfg.logger),
	}
	if scenario.MaxSteps > 0 {
		engineOpts = append(engineOpts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	eng, err := engine.New(specs, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{store: st, engine: eng, logger: cfg.logger}
	ctx := context.Background()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	changes, err := st.ReadChanges(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, c := range changes {
		result.AddChangeTrace(c)
	}

	for _, host := range eng.Hosts() {
		snap, err := eng.Snapshot(host)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %s: %w", host, err)
		}
		for name, v := range snap {
			result.State[host+"."+name] = v
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step. Mismatches are added to result; the returned
// error is reserved for steps that cannot be interpreted at all.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	host, slot, err := splitRef(step.Ref())
	if err != nil {
		return fmt.Errorf("steps[%d]: %w", i, err)
	}

	if step.Get != "" {
		got, err := h.engine.Get(host, slot)
		if !h.checkError(i, step, err, result) || err != nil {
			return nil
		}
		if step.Expect != nil && step.Expect.Value != nil {
			h.checkValue(i, step, "value", step.Expect.Value, got, result)
		}
		h.logger.Info("step completed", "step", i, "get", step.Get)
		return nil
	}

	value, err := ir.FromGo(step.Value)
	if err != nil {
		return fmt.Errorf("steps[%d]: value: %w", i, err)
	}
	res, err := h.engine.Set(ctx, host, slot, value)
	if !h.checkError(i, step, err, result) || res == nil || len(res.Changes) == 0 {
		return nil
	}

	first := res.Changes[0]
	if exp := step.Expect; exp != nil {
		if exp.Accepted != nil && *exp.Accepted != first.Accepted {
			result.AddError(fmt.Sprintf("steps[%d] set %s: expected accepted=%t, got %t",
				i, step.Set, *exp.Accepted, first.Accepted))
		}
		if exp.Value != nil {
			h.checkValue(i, step, "committed value", exp.Value, first.Committed, result)
		}
		if exp.Changes != nil && *exp.Changes != len(res.Changes) {
			result.AddError(fmt.Sprintf("steps[%d] set %s: expected %d changes in flow, got %d",
				i, step.Set, *exp.Changes, len(res.Changes)))
		}
	}
	h.logger.Info("step completed",
		"step", i,
		"set", step.Set,
		"flow", res.FlowToken,
		"accepted", first.Accepted,
		"changes", len(res.Changes),
	)
	return nil
}

// checkError compares err with the step's expected error code and reports
// whether the step should go on to check values.
func (h *Harness) checkError(i int, step Step, err error, result *Result) bool {
	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}

	var re *engine.RuntimeError
	switch {
	case err == nil && want == "":
		return true
	case err == nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got none", i, step.Ref(), want))
		return false
	case want == "":
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Ref(), err))
		return false
	case !errors.As(err, &re) || string(re.Code) != want:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got: %v", i, step.Ref(), want, err))
		return false
	}
	// The expected error happened; changes applied before it still count.
	return true
}

func (h *Harness) checkValue(i int, step Step, what string, expected any, actual ir.IRValue, result *Result) {
	want, err := ir.FromGo(expected)
	if err != nil {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s: %v", i, step.Ref(), what, err))
		return
	}
	if !ir.Equal(want, actual) {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s %s, got %s",
			i, step.Ref(), what, formatValue(want), formatValue(actual)))
	}
}

// LoadSpecs compiles the CUE files named by paths. A directory stands for
// every .cue file directly inside it.
func LoadSpecs(paths []string) ([]ir.HostSpec, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.cue"))
		if err != nil {
			return nil, err
		}
		slices.Sort(matches)
		files = append(files, matches...)
	}
	return compiler.LoadFiles(files)
}

func formatValue(v ir.IRValue) string {
	if v == nil {
		return "<none>"
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
