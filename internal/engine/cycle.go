package engine

import "sync"

// CycleDetector remembers which (reaction, binding) pairs fired in a flow.
//
// A reaction whose write re-triggers itself with the same bindings would
// loop forever:
//
//	Thermostat.temperature commits 30 → "mirror" writes Display.reading
//	→ a Display reaction writes Thermostat.temperature 30 → "mirror" again
//
// The second firing of "mirror" with binding {new: 30, old: ...} is skipped.
// A different binding is new information and is allowed to fire; the
// max-steps quota bounds flows that never repeat a binding.
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // flow token -> "reaction:bindingHash"
}

// NewCycleDetector creates an empty detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
	}
}

func cycleKey(reactionID, bindingHash string) string {
	return reactionID + ":" + bindingHash
}

// WouldCycle reports whether reactionID already fired with bindingHash in
// this flow.
func (c *CycleDetector) WouldCycle(flowToken, reactionID, bindingHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.history[flowToken][cycleKey(reactionID, bindingHash)]
}

// Record marks (reactionID, bindingHash) as fired in this flow. Call it
// right after WouldCycle returns false, before the reaction's write is queued.
func (c *CycleDetector) Record(flowToken, reactionID, bindingHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[flowToken] == nil {
		c.history[flowToken] = make(map[string]bool)
	}
	c.history[flowToken][cycleKey(reactionID, bindingHash)] = true
}

// Clear drops the history of a finished flow.
func (c *CycleDetector) Clear(flowToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.history, flowToken)
}

// HistorySize returns the number of flows with tracked history.
func (c *CycleDetector) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history)
}

// FlowHistorySize returns the number of pairs recorded for a flow.
func (c *CycleDetector) FlowHistorySize(flowToken string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history[flowToken])
}
