package graph

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// Graph is a read-only view of the dependency edge set.
type Graph struct {
	edges []*model.Dependency
	adj   adjacency
	rev   adjacency
}

// Build indexes edges into successor and predecessor lists.
func Build(edges []*model.Dependency) *Graph {
	g := &Graph{
		edges: edges,
		adj:   make(adjacency),
		rev:   make(adjacency),
	}
	for _, e := range edges {
		g.adj.add(e.From, e.To)
		g.rev.add(e.To, e.From)
	}
	return g
}

// Nodes returns every entity that appears on an edge, sorted.
func (g *Graph) Nodes() []model.EntityRef {
	return g.adj.nodes()
}

// Edges returns the edges the graph was built from.
func (g *Graph) Edges() []*model.Dependency {
	return g.edges
}

// Successors returns the entities that depend on ref.
func (g *Graph) Successors(ref model.EntityRef) []model.EntityRef {
	return g.adj[ref]
}

// Predecessors returns the entities ref depends on.
func (g *Graph) Predecessors(ref model.EntityRef) []model.EntityRef {
	return g.rev[ref]
}

// Roots returns entities with no predecessors.
func (g *Graph) Roots() []model.EntityRef {
	var roots []model.EntityRef
	for _, n := range g.Nodes() {
		if len(g.rev[n]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Leaves returns entities with no successors.
func (g *Graph) Leaves() []model.EntityRef {
	var leaves []model.EntityRef
	for _, n := range g.Nodes() {
		if len(g.adj[n]) == 0 {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

// refHeap is a min-heap of entity references, used to make Kahn's algorithm
// deterministic.
type refHeap []model.EntityRef

func (h refHeap) Len() int           { return len(h) }
func (h refHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h refHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *refHeap) Push(x any)        { *h = append(*h, x.(model.EntityRef)) }
func (h *refHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopoOrder returns the entities in a stable topological order. It returns a
// *model.CycleError if the graph contains a cycle.
func (g *Graph) TopoOrder() ([]model.EntityRef, error) {
	nodes := g.Nodes()
	indeg := make(map[model.EntityRef]int, len(nodes))
	for _, n := range nodes {
		indeg[n] = len(g.rev[n])
	}

	ready := &refHeap{}
	for _, n := range nodes {
		if indeg[n] == 0 {
			heap.Push(ready, n)
		}
	}

	order := make([]model.EntityRef, 0, len(nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(model.EntityRef)
		order = append(order, n)
		for _, m := range g.adj[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, &model.CycleError{Path: g.adj.findCycle()}
	}
	return order, nil
}

// Snapshot returns the graph in the form handed to downstream schedulers.
func (g *Graph) Snapshot() *model.GraphSnapshot {
	snap := &model.GraphSnapshot{
		Nodes: g.Nodes(),
		Edges: make([]*model.GraphEdge, 0, len(g.edges)),
		Stats: model.ComputeStats(g.edges),
	}
	for _, e := range sortedEdges(g.edges) {
		snap.Edges = append(snap.Edges, &model.GraphEdge{
			ID:      e.ID,
			Source:  e.From,
			Target:  e.To,
			Kind:    e.Kind,
			LagDays: e.LagDays,
		})
	}
	if order, err := g.TopoOrder(); err == nil {
		snap.Order = order
	}
	return snap
}

// sortedEdges returns a copy of edges ordered by source, target, then kind.
func sortedEdges(edges []*model.Dependency) []*model.Dependency {
	out := make([]*model.Dependency, len(edges))
	copy(out, edges)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.From != b.From {
			return a.From.Less(b.From)
		}
		if a.To != b.To {
			return a.To.Less(b.To)
		}
		return a.Kind < b.Kind
	})
	return out
}

// edgeLabel renders the kind plus a signed lag, e.g. "FS" or "SS+3d".
func edgeLabel(e *model.Dependency) string {
	if e.LagDays == 0 {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s%+dd", e.Kind, e.LagDays)
}
