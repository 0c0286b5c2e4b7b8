// Package session ties the layout core together for one repository tab.
//
// A [GraphSession] owns the loaded commit window, the nodes and edges drawn
// for it, the live positions on screen, the drag tracker, the diff pointer,
// the pagination controller and a debounced layout writer. Every state
// change happens under the session mutex. Fetches and layout persistence run
// outside it, so a slow repository never blocks drag ticks.
//
// # Recompute pipeline
//
// After every successful fetch:
//
//	pagination result
//	  -> layout.Engine.Layout over the oldest-first commits
//	  -> reconcile.Reconcile (live positions, cached layout, anchor)
//	  -> commit nodes
//	  -> Surface.SetNodes, then Surface.SetEdges
//
// # Failures
//
// Fetch, layout and persistence failures are reported to the [Notifier] as
// a [Notification] and leave the drawn graph untouched.
//
// # Tabs
//
// A [Manager] keeps independent sessions keyed by a random tab ID.
package session
