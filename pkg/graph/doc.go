// Package graph provides the node-link types handed to the rendering surface.
//
// The package sits at the boundary between the layout core and whatever draws
// the graph. It carries no behavior beyond small value helpers:
//
//   - [Position], [Positions]: graph-space coordinates keyed by commit ID
//   - [Node]: a tagged union of commit nodes and the virtual diff target
//   - [Edge]: a parent/child connection, flagged for merges and virtual edges
//   - [Snapshot]: everything a surface needs to paint one tab
//
// # Positions
//
// Positions serialize exactly as the persisted layout format:
//
//	{
//	  "a1b2c3": {"x": 0, "y": 0},
//	  "d4e5f6": {"x": 200, "y": 100}
//	}
//
// Non-finite coordinates are never produced by this module. Values decoded
// from untrusted storage should be checked with [Position.IsFinite].
//
// # Node Kinds
//
// A [Node] is either a commit ([KindCommit]) carrying its [commit.Commit], or
// the zero-size virtual diff target ([KindVirtualDiffTarget]) that follows the
// cursor while a diff pointer is armed. Consumers switch on [Node.Kind] rather
// than probing optional fields.
package graph
