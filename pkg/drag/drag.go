// Package drag propagates a dragged node's displacement to its descendants.
//
// In subtree mode every node reachable from the dragged node along parent→
// child edges moves by the same delta on every tick, so a branch moves as a
// unit. In single-node mode only the dragged node moves, which the caller
// handles itself.
//
// Everything here is synchronous and allocation-light: it runs on every
// pointer-move tick and must never wait on I/O.
package drag

import (
	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// Mode holds the user's subtree-drag preference.
type Mode struct {
	SubtreeDefault bool `json:"subtree_default"`
}

// IsSubtree reports the effective behavior for one gesture: holding the
// modifier key inverts the default.
func (m Mode) IsSubtree(modifierHeld bool) bool {
	return m.SubtreeDefault != modifierHeld
}

// Descendants returns every node reachable from root via non-virtual edges
// in source→target direction, in breadth-first order, excluding root.
func Descendants(root string, edges []graph.Edge) []string {
	children := make(map[string][]string)
	for _, e := range edges {
		if e.Virtual {
			continue
		}
		children[e.Source] = append(children[e.Source], e.Target)
	}

	visited := map[string]bool{root: true}
	var out []string
	queue := []string{root}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, c := range children[curr] {
			if visited[c] {
				continue
			}
			visited[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// OnDragDelta returns the new positions of the descendants of draggedID
// translated by (dx, dy). It returns nil when subtree is false or the node
// has no descendants. Descendants without a current position are skipped.
func OnDragDelta(draggedID string, dx, dy float64, edges []graph.Edge, current graph.Positions, subtree bool) graph.Positions {
	if !subtree {
		return nil
	}
	desc := Descendants(draggedID, edges)
	if len(desc) == 0 {
		return nil
	}

	delta := graph.Position{X: dx, Y: dy}
	out := make(graph.Positions, len(desc))
	for _, id := range desc {
		if p, ok := current[id]; ok {
			out[id] = p.Add(delta)
		}
	}
	return out
}

// Session is an in-progress drag gesture.
type Session struct {
	DraggedID string         `json:"dragged_id"`
	Last      graph.Position `json:"last"`
	Subtree   bool           `json:"subtree"`
	// Moved counts descendants translated at least once.
	Moved int `json:"moved"`
}

// Tracker holds at most one active drag. It is not safe for concurrent use;
// the owning session serializes access.
type Tracker struct {
	Mode   Mode
	active *Session
}

// Begin starts a drag of id from pos. A drag already in progress is
// replaced.
func (t *Tracker) Begin(id string, pos graph.Position, modifierHeld bool) *Session {
	t.active = &Session{DraggedID: id, Last: pos, Subtree: t.Mode.IsSubtree(modifierHeld)}
	return t.active
}

// Active returns the drag in progress, or nil.
func (t *Tracker) Active() *Session { return t.active }

// Move advances the drag to pos and returns the updated positions of every
// node that moves this tick, the dragged node included. ok is false when no
// drag is active.
func (t *Tracker) Move(pos graph.Position, edges []graph.Edge, current graph.Positions) (moved graph.Positions, ok bool) {
	s := t.active
	if s == nil {
		return nil, false
	}
	delta := pos.Sub(s.Last)
	s.Last = pos

	moved = OnDragDelta(s.DraggedID, delta.X, delta.Y, edges, current, s.Subtree)
	if moved == nil {
		moved = make(graph.Positions, 1)
	}
	if len(moved) > s.Moved {
		s.Moved = len(moved)
	}
	moved[s.DraggedID] = pos
	return moved, true
}

// End finishes the drag and returns it, or nil if none was active.
func (t *Tracker) End() *Session {
	s := t.active
	t.active = nil
	return s
}
