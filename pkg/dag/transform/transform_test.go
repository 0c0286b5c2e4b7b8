package transform

import (
	"testing"

	"github.com/matzehuels/commitcanvas/pkg/dag"
)

func build(t *testing.T, ids []string, edges [][2]string) *dag.DAG {
	t.Helper()
	g := dag.New()
	for _, id := range ids {
		if err := g.AddNode(dag.Node{ID: id}); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(dag.Edge{From: e[0], To: e[1]}); err != nil {
			t.Fatalf("AddEdge(%v): %v", e, err)
		}
	}
	return g
}

func TestBreakCycles(t *testing.T) {
	tests := []struct {
		name      string
		ids       []string
		edges     [][2]string
		wantDrop  int
		wantEdges int
	}{
		{"NoCycles", []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}}, 0, 2},
		{"SimpleCycle", []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}}, 1, 1},
		{"Triangle", []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}, 1, 2},
		{"TwoCycles", []string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}, {"b", "a"}, {"c", "d"}, {"d", "c"}}, 2, 2},
		{"SelfLoop", []string{"a"}, [][2]string{{"a", "a"}}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.ids, tt.edges)
			dropped := BreakCycles(g)
			if len(dropped) != tt.wantDrop {
				t.Errorf("BreakCycles() dropped %v, want %d", dropped, tt.wantDrop)
			}
			if g.EdgeCount() != tt.wantEdges {
				t.Errorf("EdgeCount() = %d, want %d", g.EdgeCount(), tt.wantEdges)
			}
			if err := g.DetectCycles(); err != nil {
				t.Errorf("graph still cyclic: %v", err)
			}
		})
	}
}

func TestBreakCyclesDeterministic(t *testing.T) {
	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}
	first := BreakCycles(build(t, []string{"a", "b", "c"}, edges))
	for range 5 {
		again := BreakCycles(build(t, []string{"a", "b", "c"}, edges))
		if len(again) != 1 || again[0] != first[0] {
			t.Fatalf("BreakCycles() = %v, want %v", again, first)
		}
	}
}

func TestAssignLayersLongestPath(t *testing.T) {
	// root → a → b → merge, root → merge
	g := build(t,
		[]string{"root", "a", "b", "merge"},
		[][2]string{{"root", "a"}, {"a", "b"}, {"b", "merge"}, {"root", "merge"}},
	)
	AssignLayers(g)

	want := map[string]int{"root": 0, "a": 1, "b": 2, "merge": 3}
	for id, row := range want {
		n, _ := g.Node(id)
		if n.Row != row {
			t.Errorf("%s.Row = %d, want %d", id, n.Row, row)
		}
	}
	for _, e := range g.Edges() {
		src, _ := g.Node(e.From)
		dst, _ := g.Node(e.To)
		if dst.Row <= src.Row {
			t.Errorf("edge %s→%s not monotone: %d→%d", e.From, e.To, src.Row, dst.Row)
		}
	}
}

func TestSubdivide(t *testing.T) {
	g := build(t,
		[]string{"root", "a", "b", "merge"},
		[][2]string{{"root", "a"}, {"a", "b"}, {"b", "merge"}, {"root", "merge"}},
	)
	AssignLayers(g)
	Subdivide(g)

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate() after Subdivide = %v", err)
	}
	if g.NodeCount() != 6 {
		t.Errorf("NodeCount() = %d, want 6", g.NodeCount())
	}
	sub, ok := g.Node("merge_sub_1")
	if !ok || !sub.IsSubdivider() || sub.LeadsTo != "merge" {
		t.Errorf("merge_sub_1 = %+v, %v", sub, ok)
	}
}

func TestSubdivideNameCollision(t *testing.T) {
	g := build(t,
		[]string{"root", "a", "merge", "merge_sub_1"},
		[][2]string{{"root", "a"}, {"a", "merge"}, {"root", "merge"}},
	)
	AssignLayers(g)
	Subdivide(g)

	sub, ok := g.Node("merge_sub_1__1")
	if !ok || sub.Row != 1 || sub.LeadsTo != "merge" {
		t.Fatalf("merge_sub_1__1 = %+v, %v", sub, ok)
	}
	if other, _ := g.Node("merge_sub_1"); other.IsSubdivider() {
		t.Error("existing node was overwritten by a lane point")
	}
}
