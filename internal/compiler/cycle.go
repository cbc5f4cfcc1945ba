package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/slotbind/internal/ir"
)

// CycleWarning reports reactions that can trigger each other.
//
// Cycles are warnings, not errors: a feedback loop whose policies converge
// (a clamp, a veto on no-op writes) terminates, and the engine skips a
// reaction that fires twice with the same binding in one flow anyway.
type CycleWarning struct {
	Path    []string `json:"path"`    // ["User/a", "User/b", "User/a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCycles builds the reaction graph (reaction → reactions triggered by
// the slot it writes) and reports every strongly connected component with
// more than one node, or with a self-loop. Node names are "Host/reaction".
//
// Output is sorted so repeated runs print the same warnings.
func AnalyzeCycles(specs []ir.HostSpec) []CycleWarning {
	graph := buildReactionGraph(specs)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Message, b.Message)
	})
	return warnings
}

// reactionGraph maps a reaction node to the reaction nodes it can trigger.
type reactionGraph map[string][]string

func reactionNode(host, id string) string {
	return host + "/" + id
}

func buildReactionGraph(specs []ir.HostSpec) reactionGraph {
	graph := make(reactionGraph)

	// "Host.slot" → reactions listening on it
	listeners := make(map[string][]string)
	for _, spec := range specs {
		for _, r := range spec.Reactions {
			key := spec.Name + "." + r.When.Slot
			listeners[key] = append(listeners[key], reactionNode(spec.Name, r.ID))
		}
	}

	for _, spec := range specs {
		for _, r := range spec.Reactions {
			node := reactionNode(spec.Name, r.ID)
			target := r.Then.Host
			if target == "" {
				target = spec.Name
			}
			if graph[node] == nil {
				graph[node] = []string{}
			}
			graph[node] = append(graph[node], listeners[target+"."+r.Then.Slot]...)
		}
	}
	return graph
}

func hasSelfLoop(node string, graph reactionGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// sorted order so component membership order is stable.
func tarjanSCC(graph reactionGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph reactionGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("self-triggering reaction: %s → %s", id, id),
			Level:   "warning",
		}
	}

	slices.Sort(scc)
	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("potential reaction cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph reactionGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
