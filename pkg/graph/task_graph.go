package graph

import (
	"github.com/mkarlsson/taskgraph/pkg/model"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// DependencyGraph is the adjacency view over one task collection snapshot.
// Neighbor order follows the insertion order of each task's Dependencies
// list. Edges referencing tasks that do not exist in the collection are kept
// in the adjacency (they are reported by the auditor, not crashed on).
//
// The structure is mirrored into a gonum directed graph so component-level
// analyses can run against the gonum interfaces.
type DependencyGraph struct {
	order []string
	adj   map[string][]string
	rev   map[string][]string
	tasks map[string]*model.Task

	directed *simple.DirectedGraph
	ids      map[string]int64
	labels   map[int64]string
	nextID   int64
}

// New builds a dependency graph from a task collection. Tasks with no
// Dependencies field are treated as having none.
func New(c *model.TaskCollection) *DependencyGraph {
	g := &DependencyGraph{
		adj:      make(map[string][]string),
		rev:      make(map[string][]string),
		tasks:    make(map[string]*model.Task),
		directed: simple.NewDirectedGraph(),
		ids:      make(map[string]int64),
		labels:   make(map[int64]string),
	}

	for _, t := range c.Tasks {
		g.addNode(t.ID)
		if _, seen := g.tasks[t.ID]; !seen {
			g.order = append(g.order, t.ID)
		}
		g.tasks[t.ID] = t
	}

	for _, t := range c.Tasks {
		for _, dep := range t.Dependencies {
			g.addNode(dep)
			g.adj[t.ID] = append(g.adj[t.ID], dep)
			g.rev[dep] = append(g.rev[dep], t.ID)

			from, to := g.ids[t.ID], g.ids[dep]
			if from != to && !g.directed.HasEdgeFromTo(from, to) {
				g.directed.SetEdge(g.directed.NewEdge(g.directed.Node(from), g.directed.Node(to)))
			}
		}
	}

	return g
}

func (g *DependencyGraph) addNode(id string) {
	if _, exists := g.ids[id]; exists {
		return
	}
	g.ids[id] = g.nextID
	g.labels[g.nextID] = id
	g.directed.AddNode(simple.Node(g.nextID))
	g.nextID++
}

// Neighbors returns the ids the given task depends on, in insertion order
func (g *DependencyGraph) Neighbors(id string) []string {
	return g.adj[id]
}

// Dependents returns the ids of tasks that directly depend on the given task
func (g *DependencyGraph) Dependents(id string) []string {
	return g.rev[id]
}

// TaskExists reports whether the id names a real task in the collection.
// Ids that only appear as dangling edge targets return false.
func (g *DependencyGraph) TaskExists(id string) bool {
	_, ok := g.tasks[id]
	return ok
}

// Task returns the task record for the given id
func (g *DependencyGraph) Task(id string) (*model.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// AllTaskIDs returns the ids of all tasks in the collection, in collection order
func (g *DependencyGraph) AllTaskIDs() []string {
	return g.order
}

// EdgeCount returns the number of dependency edges, counting duplicates
func (g *DependencyGraph) EdgeCount() int {
	count := 0
	for _, deps := range g.adj {
		count += len(deps)
	}
	return count
}

// Directed exposes the gonum mirror of the graph
func (g *DependencyGraph) Directed() graph.Directed {
	return g.directed
}

// Label maps a gonum node id back to the task id it represents
func (g *DependencyGraph) Label(nodeID int64) string {
	return g.labels[nodeID]
}
