// Package transform prepares a commit DAG for layered drawing.
//
// The layout engine applies three steps in order:
//
//	dropped := transform.BreakCycles(g) // only when cycles are tolerated
//	transform.AssignLayers(g)
//	transform.Subdivide(g)
//
// # Cycle Breaking
//
// [BreakCycles] removes DFS back edges and returns them. Commit histories
// are acyclic; a cycle means the input was assembled from inconsistent data.
//
// # Layer Assignment
//
// [AssignLayers] computes longest-path ranks: roots land in row 0 and every
// child lands one row below its deepest parent.
//
// # Edge Subdivision
//
// [Subdivide] replaces each edge spanning several rows with a chain of
// synthetic subdivider nodes, one per intermediate row:
//
//	Before: root (row 0) → merge (row 3)
//	After:  root → merge_sub_1 → merge_sub_2 → merge
//
// The chain gives crossing minimization a lane to route the edge through.
// Subdividers never leave the layout engine.
package transform
