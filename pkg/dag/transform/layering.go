package transform

import "github.com/matzehuels/commitcanvas/pkg/dag"

// AssignLayers ranks every node by its longest path from a root: roots go
// to row 0 and each child one row below its deepest parent. Rows already
// on the graph are replaced.
//
// Nodes stuck on a cycle are never released and keep row 0, so call
// [BreakCycles] first on input that may loop.
func AssignLayers(g *dag.DAG) {
	rank := map[string]int{}
	waiting := map[string]int{}
	var frontier []string
	for _, n := range g.Nodes() {
		rank[n.ID] = 0
		if waiting[n.ID] = g.InDegree(n.ID); waiting[n.ID] == 0 {
			frontier = append(frontier, n.ID)
		}
	}

	for i := 0; i < len(frontier); i++ {
		parent := frontier[i]
		for _, child := range g.Children(parent) {
			rank[child] = max(rank[child], rank[parent]+1)
			if waiting[child]--; waiting[child] == 0 {
				frontier = append(frontier, child)
			}
		}
	}
	g.SetRows(rank)
}
