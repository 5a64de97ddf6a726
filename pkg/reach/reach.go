package reach

import (
	"github.com/mkarlsson/taskgraph/pkg/graph"
)

// HasPath reports whether to is reachable from from over outgoing dependency
// edges, breadth-first. With excludeDirect set, the direct edge from -> to is
// skipped, so a positive result means an indirect path of at least two hops
// exists. That is the redundancy test: a direct edge duplicating such a path
// adds no ordering information.
func HasPath(g *graph.DependencyGraph, from, to string, excludeDirect bool) bool {
	return bfs(g, from, to, func(current, next string) bool {
		return excludeDirect && current == from && next == to
	})
}

// HasPathAvoiding reports whether to is reachable from from without passing
// through the avoid task. Used to decide whether removing an edge strands a
// dependent with no alternate route.
func HasPathAvoiding(g *graph.DependencyGraph, from, to, avoid string) bool {
	if from == avoid || to == avoid {
		return false
	}
	return bfs(g, from, to, func(current, next string) bool {
		return next == avoid
	})
}

func bfs(g *graph.DependencyGraph, from, to string, skip func(current, next string) bool) bool {
	visited := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range g.Neighbors(current) {
			if skip(current, next) {
				continue
			}
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// ChainLength returns the depth of the longest dependency chain starting at
// the given task. A task with no dependencies has chain length 1. Tasks
// already seen on the current walk are skipped, so pre-existing cycles
// terminate instead of recursing forever.
func ChainLength(g *graph.DependencyGraph, id string) int {
	visited := make(map[string]bool)

	var depth func(string) int
	depth = func(current string) int {
		visited[current] = true

		longest := 0
		for _, dep := range g.Neighbors(current) {
			if visited[dep] {
				continue
			}
			if d := depth(dep); d > longest {
				longest = d
			}
		}
		return longest + 1
	}

	return depth(id)
}
