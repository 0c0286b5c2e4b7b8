package transform

import (
	"fmt"

	"github.com/matzehuels/commitcanvas/pkg/dag"
)

// Subdivide routes every edge that skips rows through one
// [dag.NodeKindSubdivider] lane point per row it crosses. Lane points
// record the child commit they lead to in LeadsTo and are named
// "child_sub_row", with a "__n" suffix if that name is taken.
func Subdivide(g *dag.DAG) {
	taken := map[string]bool{}
	for _, n := range g.Nodes() {
		taken[n.ID] = true
	}
	laneID := func(child string, row int) string {
		id := fmt.Sprintf("%s_sub_%d", child, row)
		for i, base := 1, id; taken[id]; i++ {
			id = fmt.Sprintf("%s__%d", base, i)
		}
		taken[id] = true
		return id
	}

	for _, e := range g.Edges() {
		parent, okP := g.Node(e.From)
		child, okC := g.Node(e.To)
		if !okP || !okC || child.Row-parent.Row < 2 {
			continue
		}
		g.RemoveEdge(e.From, e.To)

		prev := parent.ID
		for row := parent.Row + 1; row < child.Row; row++ {
			id := laneID(child.ID, row)
			mustAdd(g.AddNode(dag.Node{ID: id, Row: row, Kind: dag.NodeKindSubdivider, LeadsTo: child.ID}))
			mustAdd(g.AddEdge(dag.Edge{From: prev, To: id}))
			prev = id
		}
		mustAdd(g.AddEdge(dag.Edge{From: prev, To: child.ID}))
	}
}

// mustAdd panics on insert errors, which only occur when lane naming
// is broken.
func mustAdd(err error) {
	if err != nil {
		panic(err)
	}
}
