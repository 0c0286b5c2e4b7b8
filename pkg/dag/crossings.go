package dag

import (
	"cmp"
	"slices"
)

// CountCrossings sums [CountLayerCrossings] over each row in orders and the
// row below it. A row absent from orders counts as empty.
func CountCrossings(g *DAG, orders map[int][]string) int {
	total := 0
	for row, upper := range orders {
		total += CountLayerCrossings(g, upper, orders[row+1])
	}
	return total
}

// CountLayerCrossings counts how many parent links between two adjacent
// rows cross. Links are sorted by their upper end; every later link that
// lands strictly left of an earlier one is a crossing, so the answer is
// the inversion count of the lower ends.
func CountLayerCrossings(g *DAG, upper, lower []string) int {
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}
	below := PosMap(lower)

	var ends [][2]int
	for u, id := range upper {
		for _, child := range g.Children(id) {
			if l, ok := below[child]; ok {
				ends = append(ends, [2]int{u, l})
			}
		}
	}
	slices.SortFunc(ends, func(a, b [2]int) int {
		return cmp.Or(cmp.Compare(a[0], b[0]), cmp.Compare(a[1], b[1]))
	})

	tree := make(fenwick, len(lower)+1)
	crossings := 0
	for seen, e := range ends {
		crossings += seen - tree.prefix(e[1])
		tree.add(e[1])
	}
	return crossings
}

// fenwick is a binary indexed tree over 0-based slots.
type fenwick []int

func (f fenwick) add(slot int) {
	for i := slot + 1; i < len(f); i += i & -i {
		f[i]++
	}
}

// prefix returns the count stored in slots 0..slot.
func (f fenwick) prefix(slot int) int {
	n := 0
	for i := slot + 1; i > 0; i -= i & -i {
		n += f[i]
	}
	return n
}

// CountPairCrossingsWithPos counts crossings between the links of two nodes
// in one row, with left placed before right. adjPos positions the
// neighbouring row: the row above when useParents is set, else the row
// below.
func CountPairCrossingsWithPos(g *DAG, left, right string, adjPos map[string]int, useParents bool) int {
	neighbours := g.Children
	if useParents {
		neighbours = g.Parents
	}
	rightPos := make([]int, 0, len(neighbours(right)))
	for _, id := range neighbours(right) {
		if p, ok := adjPos[id]; ok {
			rightPos = append(rightPos, p)
		}
	}

	n := 0
	for _, id := range neighbours(left) {
		lp, ok := adjPos[id]
		if !ok {
			continue
		}
		for _, rp := range rightPos {
			if rp < lp {
				n++
			}
		}
	}
	return n
}
