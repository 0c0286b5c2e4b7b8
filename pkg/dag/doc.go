// Package dag provides the layered directed graph used to lay out commit
// history.
//
// # Overview
//
// A commit graph is drawn top to bottom with roots in row 0 and every child in
// a deeper row than each of its parents. This package holds that structure:
// nodes carry a row assignment, edges run from parent to child, and rows can
// be listed in ID order so every traversal is reproducible.
//
// Build a graph with [New], [DAG.AddNode] and [DAG.AddEdge]:
//
//	g := dag.New()
//	g.AddNode(dag.Node{ID: "root"})
//	g.AddNode(dag.Node{ID: "tip", Row: 1})
//	g.AddEdge(dag.Edge{From: "root", To: "tip"})
//
// The [transform] subpackage assigns rows, removes back edges and subdivides
// long edges; [ordering] arranges nodes within rows.
//
// # Node Kinds
//
//   - [NodeKindRegular]: a commit
//   - [NodeKindSubdivider]: a synthetic lane point inserted on a long edge
//
// Subdividers carry a [Node.LeadsTo] naming the child commit whose incoming
// edge they belong to. They exist only during layout.
//
// # Edge Crossings
//
// [CountCrossings] and [CountLayerCrossings] count inversions with a Fenwick
// tree in O(E log V), which keeps repeated evaluation during ordering sweeps
// cheap on histories with thousands of commits.
//
// # Concurrency
//
// A DAG is not safe for concurrent use. The layout engine builds a fresh graph
// per call, so no sharing is needed in practice.
//
// [transform]: github.com/matzehuels/commitcanvas/pkg/dag/transform
// [ordering]: github.com/matzehuels/commitcanvas/pkg/dag/ordering
package dag
