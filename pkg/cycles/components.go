package cycles

import (
	"github.com/mkarlsson/taskgraph/pkg/graph"
	gonumgraph "gonum.org/v1/gonum/graph"
)

// Components returns the strongly connected components of size > 1, i.e. the
// distinct cycle groups, as task id sets. FindAllCycles may report the same
// underlying cycle from several start points; the SCC view collapses those
// duplicates, so the auditor uses it for its metrics.
func Components(g *graph.DependencyGraph) [][]string {
	finder := newSCCFinder(g.Directed())
	sccs := finder.find()

	components := make([][]string, 0, len(sccs))
	for _, scc := range sccs {
		ids := make([]string, 0, len(scc))
		for _, nodeID := range scc {
			ids = append(ids, g.Label(nodeID))
		}
		components = append(components, ids)
	}
	return components
}

// sccFinder runs Tarjan's algorithm over a gonum directed graph
type sccFinder struct {
	graph   gonumgraph.Directed
	index   int
	stack   []int64
	onStack map[int64]bool
	indices map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

func newSCCFinder(g gonumgraph.Directed) *sccFinder {
	return &sccFinder{
		graph:   g,
		onStack: make(map[int64]bool),
		indices: make(map[int64]int),
		lowLink: make(map[int64]int),
	}
}

func (f *sccFinder) find() [][]int64 {
	nodes := f.graph.Nodes()
	for nodes.Next() {
		node := nodes.Node()
		if _, visited := f.indices[node.ID()]; !visited {
			f.strongConnect(node.ID())
		}
	}
	return f.sccs
}

func (f *sccFinder) strongConnect(nodeID int64) {
	f.indices[nodeID] = f.index
	f.lowLink[nodeID] = f.index
	f.index++

	f.stack = append(f.stack, nodeID)
	f.onStack[nodeID] = true

	successors := f.graph.From(nodeID)
	for successors.Next() {
		succID := successors.Node().ID()

		if _, visited := f.indices[succID]; !visited {
			f.strongConnect(succID)
			f.lowLink[nodeID] = min(f.lowLink[nodeID], f.lowLink[succID])
		} else if f.onStack[succID] {
			f.lowLink[nodeID] = min(f.lowLink[nodeID], f.indices[succID])
		}
	}

	// Root of an SCC: pop the stack down to this node
	if f.lowLink[nodeID] == f.indices[nodeID] {
		var scc []int64
		for {
			w := f.stack[len(f.stack)-1]
			f.stack = f.stack[:len(f.stack)-1]
			f.onStack[w] = false
			scc = append(scc, w)
			if w == nodeID {
				break
			}
		}
		// Single nodes are trivially strongly connected; only multi-node
		// components represent cycles.
		if len(scc) > 1 {
			f.sccs = append(f.sccs, scc)
		}
	}
}
