package graph

import (
	"sort"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// DFS node colours.
const (
	white uint8 = iota // unvisited
	gray               // on the current DFS stack
	black              // finished
)

// adjacency maps each entity to its sorted, de-duplicated successors.
type adjacency map[model.EntityRef][]model.EntityRef

func buildAdjacency(edges []*model.Dependency) adjacency {
	adj := make(adjacency)
	for _, e := range edges {
		adj.add(e.From, e.To)
	}
	return adj
}

func (a adjacency) add(from, to model.EntityRef) {
	if _, ok := a[to]; !ok {
		a[to] = nil
	}
	succ := a[from]
	i := sort.Search(len(succ), func(i int) bool { return !succ[i].Less(to) })
	if i < len(succ) && succ[i] == to {
		return
	}
	succ = append(succ, model.EntityRef{})
	copy(succ[i+1:], succ[i:])
	succ[i] = to
	a[from] = succ
}

func (a adjacency) nodes() []model.EntityRef {
	nodes := make([]model.EntityRef, 0, len(a))
	for n := range a {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Less(nodes[j]) })
	return nodes
}

// frame is one level of the explicit DFS stack.
type frame struct {
	node model.EntityRef
	next int // index of the next successor to explore
}

// findCycle walks the graph iteratively from every node in sorted order and
// returns the first cycle reached, first node repeated at the end, or nil.
func (a adjacency) findCycle() []model.EntityRef {
	color := make(map[model.EntityRef]uint8, len(a))

	for _, start := range a.nodes() {
		if color[start] != white {
			continue
		}
		color[start] = gray
		stack := []frame{{node: start}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succ := a[top.node]
			if top.next == len(succ) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			next := succ[top.next]
			top.next++

			switch color[next] {
			case gray:
				return cyclePath(stack, next)
			case white:
				color[next] = gray
				stack = append(stack, frame{node: next})
			}
		}
	}
	return nil
}

// cyclePath slices the DFS stack from the first occurrence of entry and closes
// the loop back to it.
func cyclePath(stack []frame, entry model.EntityRef) []model.EntityRef {
	i := 0
	for i < len(stack) && stack[i].node != entry {
		i++
	}
	path := make([]model.EntityRef, 0, len(stack)-i+1)
	for _, f := range stack[i:] {
		path = append(path, f.node)
	}
	return append(path, entry)
}

// WouldCreateCycle reports whether adding candidate to existing closes a
// cycle. The whole graph is rebuilt and walked on every call, so a check costs
// O(V+E). When a cycle is found its path is returned for diagnostics.
func WouldCreateCycle(existing []*model.Dependency, candidate model.Triple) (bool, []model.EntityRef) {
	if candidate.From == candidate.To {
		return true, []model.EntityRef{candidate.From, candidate.To}
	}
	adj := buildAdjacency(existing)
	adj.add(candidate.From, candidate.To)
	path := adj.findCycle()
	return path != nil, path
}

// FindCycle returns a cycle among edges, or nil if the graph is acyclic.
func FindCycle(edges []*model.Dependency) []model.EntityRef {
	return buildAdjacency(edges).findCycle()
}
