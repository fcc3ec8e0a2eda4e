package graph

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

func sampleEdges() []*model.Dependency {
	p := model.Project("P")
	a, b, c := model.Task("A"), model.Task("B"), model.Task("C")
	return []*model.Dependency{
		{ID: "dep-3", From: b, To: c, Kind: model.FinishToFinish, LagDays: -1},
		{ID: "dep-1", From: p, To: a, Kind: model.FinishToStart},
		{ID: "dep-2", From: a, To: b, Kind: model.StartToStart, LagDays: 2},
	}
}

func TestGraphNavigation(t *testing.T) {
	g := Build(sampleEdges())
	p := model.Project("P")
	a, b, c := model.Task("A"), model.Task("B"), model.Task("C")

	if got, want := g.Nodes(), []model.EntityRef{p, a, b, c}; !reflect.DeepEqual(got, want) {
		t.Errorf("Nodes = %v, want %v", got, want)
	}
	if got, want := g.Roots(), []model.EntityRef{p}; !reflect.DeepEqual(got, want) {
		t.Errorf("Roots = %v, want %v", got, want)
	}
	if got, want := g.Leaves(), []model.EntityRef{c}; !reflect.DeepEqual(got, want) {
		t.Errorf("Leaves = %v, want %v", got, want)
	}
	if got, want := g.Successors(a), []model.EntityRef{b}; !reflect.DeepEqual(got, want) {
		t.Errorf("Successors(A) = %v, want %v", got, want)
	}
	if got, want := g.Predecessors(a), []model.EntityRef{p}; !reflect.DeepEqual(got, want) {
		t.Errorf("Predecessors(A) = %v, want %v", got, want)
	}
}

func TestTopoOrder(t *testing.T) {
	order, err := Build(sampleEdges()).TopoOrder()
	if err != nil {
		t.Fatalf("TopoOrder: %v", err)
	}
	want := []model.EntityRef{model.Project("P"), model.Task("A"), model.Task("B"), model.Task("C")}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("TopoOrder = %v, want %v", order, want)
	}
}

func TestTopoOrderStableAmongIndependentNodes(t *testing.T) {
	x, y, z := model.Task("X"), model.Task("Y"), model.Task("Z")
	edges := []*model.Dependency{
		{From: z, To: y, Kind: model.FinishToStart},
		{From: x, To: y, Kind: model.FinishToStart},
	}
	order, err := Build(edges).TopoOrder()
	if err != nil {
		t.Fatalf("TopoOrder: %v", err)
	}
	want := []model.EntityRef{x, z, y}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("TopoOrder = %v, want %v", order, want)
	}
}

func TestTopoOrderCycle(t *testing.T) {
	a, b := model.Task("A"), model.Task("B")
	edges := []*model.Dependency{
		{From: a, To: b, Kind: model.FinishToStart},
		{From: b, To: a, Kind: model.FinishToStart},
	}
	_, err := Build(edges).TopoOrder()
	var ce *model.CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *model.CycleError, got %v", err)
	}
	if len(ce.Path) != 3 {
		t.Errorf("cycle path = %v", ce.Path)
	}
}

func TestSnapshot(t *testing.T) {
	snap := Build(sampleEdges()).Snapshot()

	if len(snap.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(snap.Nodes))
	}
	if len(snap.Edges) != 3 {
		t.Fatalf("edges = %d, want 3", len(snap.Edges))
	}
	if snap.Edges[0].ID != "dep-1" || snap.Edges[2].ID != "dep-3" {
		t.Errorf("edges not sorted: %s, %s, %s", snap.Edges[0].ID, snap.Edges[1].ID, snap.Edges[2].ID)
	}
	if len(snap.Order) != 4 {
		t.Errorf("order = %v", snap.Order)
	}
	if snap.Stats.Total != 3 || snap.Stats.ByEndpoints["project->task"] != 1 || snap.Stats.ByEndpoints["task->task"] != 2 {
		t.Errorf("stats = %+v", snap.Stats)
	}
}

func TestRenderDOT(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderDOT(&buf, sampleEdges()); err != nil {
		t.Fatalf("RenderDOT: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "sample", buf.Bytes())
}

func TestRenderDOTEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderDOT(&buf, nil); err != nil {
		t.Fatalf("RenderDOT: %v", err)
	}
	want := "digraph dependencies {\n  rankdir=LR;\n  node [shape=box];\n}\n"
	if buf.String() != want {
		t.Errorf("RenderDOT(nil) = %q, want %q", buf.String(), want)
	}
}
