// Package pkg provides the core libraries of commitcanvas, a commit graph
// canvas that keeps a user's hand-made arrangement of a repository's
// history while the history grows.
//
// # Overview
//
// A repository tab shows a window of commits as a node-link diagram. New
// commits on top (refresh) and older history at the bottom (load more) are
// merged into the drawing without moving anything the user has placed. The
// libraries are organized as:
//
//  1. Core - layout, reconciliation, drag and diff-pointer logic
//  2. Collaborators - git access and layout persistence
//  3. Orchestration - the per-tab session
//
// # Architecture
//
//	git repository
//	      ↓
//	[gitsource] (commits, refs, status, diffs)
//	      ↓
//	[pagination] (windowed history, busy flag, stale guards)
//	      ↓
//	[layout] (layered default positions via [dag])
//	      ↓
//	[reconcile] (live > cached > default)
//	      ↓
//	[session] → Surface (nodes, then edges)
//
// Drags ([drag]) and the diff pointer ([diffpointer]) mutate the session's
// live state; [layoutcache] persists positions with a debounced writer.
//
// # Main Packages
//
// [commit] - Commit and ref records, including the synthetic working-copy
// commit.
//
// [graph] - Positions, nodes (commit or virtual diff target), edges and
// snapshots.
//
// [dag] - Row-based DAG with [dag/transform] (layering, cycle breaking,
// subdivision) and [dag/ordering] (barycentric crossing reduction).
//
// [layout] - Deterministic default positions for a set of commits.
//
// [reconcile] - Full-reload and incremental reconciliation.
//
// [drag] - Subtree drag propagation and the drag tracker.
//
// [diffpointer] - The Idle/Armed diff pointer state machine.
//
// [pagination] - Commit window controller.
//
// [layoutcache] - Layout stores (file, bbolt, Redis, MongoDB, memory) and the
// debounced writer.
//
// [gitsource] - go-git backed collaborators.
//
// [session] - GraphSession and the tab Manager.
//
// [render] - DOT/SVG/PDF/PNG export with pinned positions.
//
// [errors] - Coded errors and input validation.
//
// [observability] - Hooks for fetch, reconcile, drag and cache events.
//
// # Testing
//
//	go test ./pkg/...
//	COMMITCANVAS_REDIS_ADDR=localhost:6379 go test ./pkg/layoutcache/...
//
// [commit]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/commit
// [graph]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/graph
// [dag]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/dag
// [dag/transform]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/dag/transform
// [dag/ordering]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/dag/ordering
// [layout]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/layout
// [reconcile]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/reconcile
// [drag]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/drag
// [diffpointer]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/diffpointer
// [pagination]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/pagination
// [layoutcache]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/layoutcache
// [gitsource]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/gitsource
// [session]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/session
// [render]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/render
// [errors]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/commitcanvas/pkg/observability
package pkg
