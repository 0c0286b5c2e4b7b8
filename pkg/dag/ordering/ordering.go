// Package ordering arranges the nodes of each row to reduce edge crossings.
//
// [Barycentric] is the only orderer. It alternates downward and upward
// sweeps, placing each node at the mean position of its neighbours in the
// adjacent row, then improves the result by swapping adjacent nodes while
// that lowers the crossing count. The best ordering seen across all passes
// is returned.
//
// Ordering is fully deterministic: the initial order of every row is by ID,
// and ties in barycenter are broken by the previous position.
package ordering

import (
	"slices"

	"github.com/matzehuels/commitcanvas/pkg/dag"
)

// DefaultPasses is the number of sweeps used when Barycentric.Passes is 0.
const DefaultPasses = 24

// maxTransposeRounds bounds the adjacent-swap refinement per sweep.
const maxTransposeRounds = 8

// Orderer determines the left-to-right sequence of nodes in each row.
type Orderer interface {
	OrderRows(g *dag.DAG) map[int][]string
}

// Barycentric is the sweep-based heuristic orderer.
type Barycentric struct {
	Passes int
}

// OrderRows returns node IDs per row in left-to-right order.
func (b Barycentric) OrderRows(g *dag.DAG) map[int][]string {
	rows := g.RowIDs()
	orders := make(map[int][]string, len(rows))
	for _, r := range rows {
		ids := dag.NodeIDs(g.NodesInRow(r))
		slices.Sort(ids)
		orders[r] = ids
	}
	if len(rows) < 2 {
		return orders
	}

	passes := b.Passes
	if passes <= 0 {
		passes = DefaultPasses
	}

	best := cloneOrders(orders)
	bestCrossings := dag.CountCrossings(g, orders)

	for pass := 0; pass < passes && bestCrossings > 0; pass++ {
		if pass%2 == 0 {
			for i := 1; i < len(rows); i++ {
				reorder(g, orders, rows[i], rows[i]-1, true)
			}
		} else {
			for i := len(rows) - 2; i >= 0; i-- {
				reorder(g, orders, rows[i], rows[i]+1, false)
			}
		}
		transpose(g, orders, rows)

		if c := dag.CountCrossings(g, orders); c < bestCrossings {
			bestCrossings = c
			best = cloneOrders(orders)
		}
	}
	return best
}

// reorder sorts row by the barycenter of each node's neighbours in adj.
// Nodes without neighbours keep their current index as barycenter.
func reorder(g *dag.DAG, orders map[int][]string, row, adj int, useParents bool) {
	adjPos := dag.PosMap(orders[adj])
	cur := orders[row]
	prev := dag.PosMap(cur)

	bary := make(map[string]float64, len(cur))
	for i, id := range cur {
		var nbrs []string
		if useParents {
			nbrs = g.Parents(id)
		} else {
			nbrs = g.Children(id)
		}
		sum, n := 0.0, 0
		for _, nb := range nbrs {
			if p, ok := adjPos[nb]; ok {
				sum += float64(p)
				n++
			}
		}
		if n == 0 {
			bary[id] = float64(i)
		} else {
			bary[id] = sum / float64(n)
		}
	}

	next := slices.Clone(cur)
	slices.SortStableFunc(next, func(a, b string) int {
		switch {
		case bary[a] < bary[b]:
			return -1
		case bary[a] > bary[b]:
			return 1
		case prev[a] != prev[b]:
			return prev[a] - prev[b]
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	orders[row] = next
}

// transpose swaps adjacent nodes while doing so strictly reduces crossings
// with both neighbouring rows.
func transpose(g *dag.DAG, orders map[int][]string, rows []int) {
	for range maxTransposeRounds {
		improved := false
		for _, r := range rows {
			row := orders[r]
			if len(row) < 2 {
				continue
			}
			above := dag.PosMap(orders[r-1])
			below := dag.PosMap(orders[r+1])
			for i := 0; i+1 < len(row); i++ {
				l, rt := row[i], row[i+1]
				before := dag.CountPairCrossingsWithPos(g, l, rt, above, true) +
					dag.CountPairCrossingsWithPos(g, l, rt, below, false)
				after := dag.CountPairCrossingsWithPos(g, rt, l, above, true) +
					dag.CountPairCrossingsWithPos(g, rt, l, below, false)
				if after < before {
					row[i], row[i+1] = rt, l
					improved = true
				}
			}
		}
		if !improved {
			return
		}
	}
}

func cloneOrders(orders map[int][]string) map[int][]string {
	out := make(map[int][]string, len(orders))
	for r, ids := range orders {
		out[r] = slices.Clone(ids)
	}
	return out
}
