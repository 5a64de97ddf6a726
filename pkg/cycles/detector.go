package cycles

import (
	"github.com/mkarlsson/taskgraph/pkg/graph"
)

// CycleCheck is the result of a cycle probe. Path is the recursion-stack
// slice from the first occurrence of the revisited task through the task
// that closed the loop, with the revisited task repeated at the end, e.g.
// [t1, t3, t2, t1].
type CycleCheck struct {
	HasCycle bool
	Path     []string
}

// WouldCreateCycle reports whether adding the edge from -> to would close a
// directed cycle. The candidate edge is added provisionally for the probe
// only; the graph is not modified. The walk is depth-first with an explicit
// stack so pathological chains cannot exhaust the call stack.
func WouldCreateCycle(g *graph.DependencyGraph, from, to string) CycleCheck {
	walker := newWalker(func(id string) []string {
		deps := g.Neighbors(id)
		if id != from {
			return deps
		}
		// Provisional edge under test.
		withCandidate := make([]string, 0, len(deps)+1)
		withCandidate = append(withCandidate, deps...)
		return append(withCandidate, to)
	})

	if cycle := walker.walkFrom(from); cycle != nil {
		return CycleCheck{HasCycle: true, Path: cycle}
	}
	return CycleCheck{}
}

// FindAllCycles scans the whole graph in one depth-first pass, starting from
// every unvisited task in collection order, and returns the path of every
// back edge hit. Distinct start points may report the same underlying cycle
// more than once; callers that need distinct components should group the
// results with Components.
func FindAllCycles(g *graph.DependencyGraph) [][]string {
	walker := newWalker(g.Neighbors)

	var found [][]string
	for _, id := range g.AllTaskIDs() {
		if walker.visited[id] {
			continue
		}
		walker.walkAll(id, func(cycle []string) {
			found = append(found, cycle)
		})
	}
	return found
}

// walker runs iterative depth-first traversals with recursion-stack
// bookkeeping shared across roots.
type walker struct {
	neighbors func(string) []string
	visited   map[string]bool
	onStack   map[string]bool
	stack     []string
}

func newWalker(neighbors func(string) []string) *walker {
	return &walker{
		neighbors: neighbors,
		visited:   make(map[string]bool),
		onStack:   make(map[string]bool),
	}
}

// frame tracks one node's traversal progress on the explicit stack
type frame struct {
	id   string
	next int
}

// walkFrom walks until the first back edge and returns its cycle path, or
// nil if none is reachable from root.
func (w *walker) walkFrom(root string) []string {
	var result []string
	w.walkAll(root, func(cycle []string) {
		if result == nil {
			result = cycle
		}
	})
	return result
}

// walkAll walks the component reachable from root, invoking onCycle for
// every back edge found.
func (w *walker) walkAll(root string, onCycle func([]string)) {
	w.push(root)
	frames := []frame{{id: root}}

	for len(frames) > 0 {
		top := &frames[len(frames)-1]
		deps := w.neighbors(top.id)

		if top.next >= len(deps) {
			w.pop(top.id)
			frames = frames[:len(frames)-1]
			continue
		}

		next := deps[top.next]
		top.next++

		if w.onStack[next] {
			onCycle(w.cyclePath(next))
			continue
		}
		if w.visited[next] {
			continue
		}

		w.push(next)
		frames = append(frames, frame{id: next})
	}
}

func (w *walker) push(id string) {
	w.visited[id] = true
	w.onStack[id] = true
	w.stack = append(w.stack, id)
}

func (w *walker) pop(id string) {
	w.onStack[id] = false
	w.stack = w.stack[:len(w.stack)-1]
}

// cyclePath slices the recursion stack from the first occurrence of the
// revisited node and closes the loop by repeating it.
func (w *walker) cyclePath(revisited string) []string {
	start := 0
	for i, id := range w.stack {
		if id == revisited {
			start = i
			break
		}
	}

	path := make([]string, 0, len(w.stack)-start+1)
	path = append(path, w.stack[start:]...)
	return append(path, revisited)
}
