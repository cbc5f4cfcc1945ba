package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/slotbind/internal/compiler"
	"github.com/roach88/slotbind/internal/ir"
)

// DefaultMaxSteps is the default maximum number of writes per flow.
const DefaultMaxSteps = 1000

// Journal persists applied changes. *store.Store implements it.
type Journal interface {
	WriteChange(ctx context.Context, c ir.Change) error
}

// Recorder receives engine counters. *metrics.Recorder implements it.
type Recorder interface {
	ChangeApplied(c ir.Change)
	ReactionFired(host, reactionID string)
	ReactionSkipped(host, reactionID, reason string)
	FlowFinished(steps int, err error)
}

// Listener is notified of every applied change, in seq order, after the
// change is journaled. Listeners run under the engine's write lock and must
// not call Set.
type Listener func(ir.Change)

// Reasons passed to Recorder.ReactionSkipped.
const (
	SkipCondition = "condition"
	SkipCycle     = "cycle"
	SkipUnbound   = "unbound" // then.from names a binding with no value
)

// Engine runs host specs: it owns one live host per spec, applies writes
// through slot policies and fires reactions.
//
// Set is single-writer: flows are serialized engine-wide so seq numbers,
// reaction order and the journal are deterministic. Get and Snapshot never
// take the write lock.
type Engine struct {
	mu        sync.Mutex // serializes Set and Replay
	specs     []ir.HostSpec
	state     atomic.Pointer[hostSet]
	clock     *Clock
	flowGen   FlowTokenGenerator
	cycles    *CycleDetector
	maxSteps  int
	journal   Journal
	recorder  Recorder
	listeners []Listener
	logger    *slog.Logger
}

// Option configures an Engine under construction.
type Option func(*Engine)

// WithJournal persists every applied change to j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithRecorder reports counters to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithListener adds a change listener. Listeners run in registration order.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, l)
	}
}

// WithFlowGenerator replaces the UUIDv7 flow token generator.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(e *Engine) {
		e.flowGen = g
	}
}

// WithClock sets the logical clock, e.g. NewClockAt(store.LastSeq) to keep
// numbering after a journal that already has changes.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMaxSteps sets the maximum writes per flow.
//
// Default: 1000 (DefaultMaxSteps). Values below 1 are ignored.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLogger sets the logger. Observable and validating policies log
// through it too. The engine is silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New validates specs and builds one host instance per spec.
//
// The specs slice is copied: reaction order is declaration order and must
// not change under the engine.
func New(specs []ir.HostSpec, opts ...Option) (*Engine, error) {
	e := &Engine{
		specs:    append([]ir.HostSpec(nil), specs...),
		clock:    NewClock(),
		flowGen:  UUIDv7Generator{},
		cycles:   NewCycleDetector(),
		maxSteps: DefaultMaxSteps,
		recorder: nopRecorder{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}

	if errs := compiler.ValidateAll(e.specs); len(errs) > 0 {
		for _, ve := range errs {
			if ve.Code == compiler.ErrDuplicateHost {
				return nil, &RuntimeError{Code: ErrCodeDuplicateHost, Message: ve.Message}
			}
		}
		msgs := make([]string, len(errs))
		for i, ve := range errs {
			msgs[i] = ve.Error()
		}
		return nil, &RuntimeError{
			Code:    ErrCodeInvalidSpec,
			Message: strings.Join(msgs, "; "),
			Details: map[string]string{"errors": fmt.Sprintf("%d", len(errs))},
		}
	}

	set, err := buildHostSet(e.specs, e.logger)
	if err != nil {
		return nil, err
	}
	e.state.Store(&set)

	e.logger.Debug("engine ready", "hosts", len(e.specs), "max_steps", e.maxSteps)
	return e, nil
}

// Result is the outcome of one flow.
type Result struct {
	FlowToken string      `json:"flow_token"`
	Changes   []ir.Change `json:"changes"` // seq order; Changes[0] is the direct write
}

// Set writes value to host.slot and runs the reactions it triggers.
//
// The direct write comes first. Each applied change is matched against the
// reactions of its host in declaration order, and every reaction that fires
// queues one follow-on write. Queued writes are applied FIFO until the queue
// is empty.
//
// Unknown host or slot, and a value of the wrong IR type, fail before a flow
// starts. A rejected write is not an error. If the flow stops early
// (quota, journal, cancelled ctx), the error is returned together with the
// changes that were applied before it; those stay committed.
func (e *Engine) Set(ctx context.Context, host, slotName string, value ir.IRValue) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := *e.state.Load()
	if value == nil {
		return nil, newRuntimeError(ErrCodeTypeMismatch, host, slotName, "value must not be nil")
	}
	if _, _, err := set.resolveWrite(host, slotName, value); err != nil {
		return nil, err
	}

	flow := e.flowGen.Generate()
	defer e.cycles.Clear(flow)

	res := &Result{FlowToken: flow}
	quota := NewQuotaEnforcer(e.maxSteps)
	queue := newWriteQueue()
	queue.push(pendingWrite{host: host, slot: slotName, value: value})

	var flowErr error
	for {
		w, ok := queue.pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			flowErr = err
			break
		}
		if err := quota.Check(flow); err != nil {
			var se *StepsExceededError
			errors.As(err, &se)
			re := NewQuotaError(se)
			re.Host, re.Slot = w.host, w.slot
			re.ReactionID = w.reaction
			flowErr = re
			e.logger.Warn("flow exceeded max steps", "flow", flow, "max_steps", e.maxSteps, "pending", queue.len())
			break
		}

		change, err := e.apply(ctx, set, flow, w)
		if err != nil {
			flowErr = err
			break
		}
		res.Changes = append(res.Changes, change)
		e.react(set, flow, change, queue)
	}

	e.recorder.FlowFinished(len(res.Changes), flowErr)
	e.logger.Debug("flow finished", "flow", flow, "steps", len(res.Changes), "error", flowErr)
	return res, flowErr
}

// apply writes one queued value through its slot's policy and records the
// resulting change. The in-memory write is not undone if the journal fails.
func (e *Engine) apply(ctx context.Context, set hostSet, flow string, w pendingWrite) (ir.Change, error) {
	_, handle, err := set.resolveWrite(w.host, w.slot, w.value)
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			re.FlowToken = flow
			re.ReactionID = w.reaction
		}
		return ir.Change{}, err
	}

	sc := handle.Write(w.value)
	c := ir.Change{
		FlowToken: flow,
		Seq:       e.clock.Next(),
		Host:      w.host,
		Slot:      w.slot,
		Old:       sc.Old,
		Proposed:  sc.Proposed,
		Committed: sc.New,
		Accepted:  sc.Accepted,
		Cause:     w.cause(),
	}
	if c.ID, err = ir.ChangeID(c); err != nil {
		return c, fmt.Errorf("change id: %w", err)
	}

	if e.journal != nil {
		if err := e.journal.WriteChange(ctx, c); err != nil {
			return c, &RuntimeError{
				Code:       ErrCodeJournalFailed,
				Message:    err.Error(),
				FlowToken:  flow,
				Host:       w.host,
				Slot:       w.slot,
				ReactionID: w.reaction,
			}
		}
	}

	e.recorder.ChangeApplied(c)
	for _, l := range e.listeners {
		l(c)
	}
	e.logger.Debug("change applied",
		"flow", flow, "seq", c.Seq, "host", c.Host, "slot", c.Slot,
		"accepted", c.Accepted, "cause", c.Cause)
	return c, nil
}

// react queues the writes of every reaction on c's host that c triggers.
func (e *Engine) react(set hostSet, flow string, c ir.Change, queue *writeQueue) {
	inst := set[c.Host]
	if inst == nil || len(inst.spec.Reactions) == 0 {
		return
	}

	// Old and new are nil around the first write to a late slot.
	bindings := ir.IRObject{ir.BindingProposed: c.Proposed}
	if c.Committed != nil {
		bindings[ir.BindingNew] = c.Committed
	}
	if c.Old != nil {
		bindings[ir.BindingOld] = c.Old
	}

	for _, r := range inst.spec.Reactions {
		if r.When.Slot != c.Slot || !outcomeMatches(r.When.Outcome, c.Accepted) {
			continue
		}
		id := c.Host + "/" + r.ID

		if r.Where != nil && !evalRule(r.Where.Rule, bindings[r.Where.Binding]) {
			e.recorder.ReactionSkipped(c.Host, r.ID, SkipCondition)
			continue
		}

		if r.Then.From != "" && bindings[r.Then.From] == nil {
			e.recorder.ReactionSkipped(c.Host, r.ID, SkipUnbound)
			e.logger.Debug("reaction skipped: binding has no value",
				"flow", flow, "reaction", id, "binding", r.Then.From)
			continue
		}

		hash, err := ir.BindingHash(bindings)
		if err != nil {
			// Bindings hold committed slot values, which always encode.
			e.logger.Error("binding hash failed", "flow", flow, "reaction", id, "error", err)
			continue
		}
		if e.cycles.WouldCycle(flow, id, hash) {
			e.recorder.ReactionSkipped(c.Host, r.ID, SkipCycle)
			e.logger.Warn("reaction skipped: same binding already fired in flow",
				"flow", flow, "reaction", id, "binding_hash", hash)
			continue
		}
		e.cycles.Record(flow, id, hash)

		target := r.Then.Host
		if target == "" {
			target = c.Host
		}
		value := r.Then.Value
		if r.Then.From != "" {
			value = bindings[r.Then.From]
		}

		queue.push(pendingWrite{host: target, slot: r.Then.Slot, value: value, reaction: id})
		e.recorder.ReactionFired(c.Host, r.ID)
		e.logger.Debug("reaction fired", "flow", flow, "reaction", id, "target", target+"."+r.Then.Slot)
	}
}

func outcomeMatches(outcome string, accepted bool) bool {
	switch outcome {
	case ir.OutcomeAny:
		return true
	case ir.OutcomeRejected:
		return !accepted
	default:
		return accepted
	}
}

// Get reads host.slot through its policy, so presenting policies format the
// returned value. Computed slots are derived now. A late slot that was
// never written fails with UNINITIALIZED.
func (e *Engine) Get(host, slotName string) (ir.IRValue, error) {
	_, handle, err := e.state.Load().resolve(host, slotName, nil)
	if err != nil {
		return nil, err
	}
	return load(host, slotName, handle)
}

// Snapshot returns every slot of host, read through its policy. Slots that
// cannot be read, such as unset late slots, are left out.
func (e *Engine) Snapshot(host string) (ir.IRObject, error) {
	inst, ok := (*e.state.Load())[host]
	if !ok {
		return nil, newRuntimeError(ErrCodeUnknownHost, host, "", "no such host")
	}
	out := make(ir.IRObject, len(inst.slots))
	for name, handle := range inst.slots {
		v, err := handle.Load()
		if err != nil {
			continue
		}
		out[name] = v
	}
	return out, nil
}

// Hosts returns host names in declaration order.
func (e *Engine) Hosts() []string {
	names := make([]string, len(e.specs))
	for i, s := range e.specs {
		names[i] = s.Name
	}
	return names
}

// Spec returns the spec of host.
func (e *Engine) Spec(host string) (ir.HostSpec, bool) {
	for _, s := range e.specs {
		if s.Name == host {
			return s, true
		}
	}
	return ir.HostSpec{}, false
}

// Specs returns a copy of the engine's specs.
func (e *Engine) Specs() []ir.HostSpec {
	return append([]ir.HostSpec(nil), e.specs...)
}

// Seq returns the last seq the engine issued.
func (e *Engine) Seq() int64 {
	return e.clock.Current()
}

type nopRecorder struct{}

func (nopRecorder) ChangeApplied(ir.Change)                {}
func (nopRecorder) ReactionFired(string, string)           {}
func (nopRecorder) ReactionSkipped(string, string, string) {}
func (nopRecorder) FlowFinished(int, error)                {}
