package ordering

import (
	"slices"
	"testing"

	"github.com/matzehuels/commitcanvas/pkg/dag"
)

func TestBarycentricRemovesCrossing(t *testing.T) {
	g := dag.New()
	_ = g.AddNode(dag.Node{ID: "a", Row: 0})
	_ = g.AddNode(dag.Node{ID: "b", Row: 0})
	_ = g.AddNode(dag.Node{ID: "x", Row: 1})
	_ = g.AddNode(dag.Node{ID: "y", Row: 1})
	_ = g.AddEdge(dag.Edge{From: "a", To: "y"})
	_ = g.AddEdge(dag.Edge{From: "b", To: "x"})

	if c := dag.CountLayerCrossings(g, []string{"a", "b"}, []string{"x", "y"}); c != 1 {
		t.Fatalf("initial crossings = %d, want 1", c)
	}

	orders := Barycentric{}.OrderRows(g)
	if c := dag.CountCrossings(g, orders); c != 0 {
		t.Errorf("crossings after ordering = %d, want 0 (orders %v)", c, orders)
	}
}

func TestBarycentricDeterministic(t *testing.T) {
	build := func() *dag.DAG {
		g := dag.New()
		for _, n := range []dag.Node{
			{ID: "r", Row: 0},
			{ID: "p", Row: 1}, {ID: "q", Row: 1}, {ID: "s", Row: 1},
			{ID: "m", Row: 2}, {ID: "n", Row: 2},
		} {
			_ = g.AddNode(n)
		}
		for _, e := range []dag.Edge{
			{From: "r", To: "p"}, {From: "r", To: "q"}, {From: "r", To: "s"},
			{From: "s", To: "m"}, {From: "p", To: "n"}, {From: "q", To: "m"},
		} {
			_ = g.AddEdge(e)
		}
		return g
	}

	first := Barycentric{Passes: 4}.OrderRows(build())
	for range 10 {
		got := Barycentric{Passes: 4}.OrderRows(build())
		for r, ids := range first {
			if !slices.Equal(got[r], ids) {
				t.Fatalf("row %d = %v, want %v", r, got[r], ids)
			}
		}
	}
}

func TestBarycentricSingleRow(t *testing.T) {
	g := dag.New()
	_ = g.AddNode(dag.Node{ID: "b"})
	_ = g.AddNode(dag.Node{ID: "a"})

	orders := Barycentric{}.OrderRows(g)
	if !slices.Equal(orders[0], []string{"a", "b"}) {
		t.Errorf("orders[0] = %v, want [a b]", orders[0])
	}
}
