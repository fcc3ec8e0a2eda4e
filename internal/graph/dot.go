package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// WriteDOT renders the graph in Graphviz DOT format. Projects are drawn as
// rounded boxes, tasks as plain boxes; edges are labelled with kind and lag.
func (g *Graph) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph dependencies {")
	fmt.Fprintln(bw, "  rankdir=LR;")
	fmt.Fprintln(bw, "  node [shape=box];")
	for _, n := range g.Nodes() {
		style := ""
		if n.Kind == model.EntityProject {
			style = " style=rounded"
		}
		fmt.Fprintf(bw, "  %s [label=%s%s];\n", strconv.Quote(n.String()), strconv.Quote(n.ID), style)
	}
	for _, e := range sortedEdges(g.edges) {
		fmt.Fprintf(bw, "  %s -> %s [label=%s];\n",
			strconv.Quote(e.From.String()), strconv.Quote(e.To.String()), strconv.Quote(edgeLabel(e)))
	}
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}

// RenderDOT writes edges as a Graphviz digraph.
func RenderDOT(w io.Writer, edges []*model.Dependency) error {
	return Build(edges).WriteDOT(w)
}
