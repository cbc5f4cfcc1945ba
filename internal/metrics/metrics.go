// Package metrics exposes engine counters as Prometheus metrics.
//
// The CLI runs one command per process, so there is no scrape endpoint:
// counters are written to a node_exporter textfile when a command ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/slotbind/internal/ir"
)

const namespace = "slotbind"

// Recorder counts changes, reaction firings and flows. It implements
// engine.Recorder.
type Recorder struct {
	registry  *prometheus.Registry
	changes   *prometheus.CounterVec
	reactions *prometheus.CounterVec
	flows     *prometheus.CounterVec
	flowSteps prometheus.Histogram
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Slot writes applied, by outcome.",
		}, []string{"host", "slot", "outcome"}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_total",
			Help:      "Reaction evaluations, by result (fired, condition, cycle).",
		}, []string{"host", "reaction", "result"}),
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_total",
			Help:      "Flows finished, by status.",
		}, []string{"status"}),
		flowSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_steps",
			Help:      "Changes applied per flow.",
			Buckets:   []float64{1, 2, 4, 8, 16, 64, 256, 1024},
		}),
	}
	r.registry.MustRegister(r.changes, r.reactions, r.flows, r.flowSteps)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ChangeApplied counts one applied change.
func (r *Recorder) ChangeApplied(c ir.Change) {
	outcome := "committed"
	if !c.Accepted {
		outcome = "rejected"
	}
	r.changes.WithLabelValues(c.Host, c.Slot, outcome).Inc()
}

// ReactionFired counts a reaction that queued a write.
func (r *Recorder) ReactionFired(host, reactionID string) {
	r.reactions.WithLabelValues(host, reactionID, "fired").Inc()
}

// ReactionSkipped counts a matching reaction that did not fire.
func (r *Recorder) ReactionSkipped(host, reactionID, reason string) {
	r.reactions.WithLabelValues(host, reactionID, reason).Inc()
}

// FlowFinished counts a finished flow and observes its length.
func (r *Recorder) FlowFinished(steps int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.flows.WithLabelValues(status).Inc()
	r.flowSteps.Observe(float64(steps))
}

// WriteTextfile writes every metric to path in the text exposition format,
// atomically, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
