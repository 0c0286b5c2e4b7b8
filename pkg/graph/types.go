package graph

import (
	"math"
	"slices"
	"sort"

	"github.com/matzehuels/commitcanvas/pkg/commit"
)

// =============================================================================
// Position
// =============================================================================

// Position is a point in graph coordinates.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Add returns p translated by q.
func (p Position) Add(q Position) Position { return Position{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns the vector from q to p.
func (p Position) Sub(q Position) Position { return Position{X: p.X - q.X, Y: p.Y - q.Y} }

// IsFinite reports whether both coordinates are finite numbers.
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Positions maps commit IDs to graph coordinates.
type Positions map[string]Position

// Clone returns a copy of p. A nil map clones to an empty one.
func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Lookup returns the position for id if present and finite.
func (p Positions) Lookup(id string) (Position, bool) {
	pos, ok := p[id]
	if !ok || !pos.IsFinite() {
		return Position{}, false
	}
	return pos, true
}

// IDs returns the keys of p in sorted order.
func (p Positions) IDs() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// Node
// =============================================================================

// NodeKind tags the variant held by a [Node].
type NodeKind string

// Node kinds.
const (
	KindCommit            NodeKind = "commit"
	KindVirtualDiffTarget NodeKind = "virtual_diff_target"
)

// Node is a positioned element of the diagram.
type Node struct {
	ID       string         `json:"id" bson:"id"`
	Kind     NodeKind       `json:"kind" bson:"kind"`
	Position Position       `json:"position" bson:"position"`
	Commit   *commit.Commit `json:"commit,omitempty" bson:"commit,omitempty"` // Only for KindCommit
}

// IsVirtual returns true for the diff target placeholder.
func (n *Node) IsVirtual() bool { return n.Kind == KindVirtualDiffTarget }

// NewCommitNode builds a commit node at pos.
func NewCommitNode(c commit.Commit, pos Position) Node {
	c = c.Clone()
	return Node{ID: c.ID, Kind: KindCommit, Position: pos, Commit: &c}
}

// NewVirtualNode builds the zero-size diff target node at pos.
func NewVirtualNode(id string, pos Position) Node {
	return Node{ID: id, Kind: KindVirtualDiffTarget, Position: pos}
}

// =============================================================================
// Edge
// =============================================================================

// Edge connects a parent (Source) to a child (Target).
type Edge struct {
	Source  string `json:"source" bson:"source"`
	Target  string `json:"target" bson:"target"`
	Merge   bool   `json:"merge,omitempty" bson:"merge,omitempty"`     // Source is not the child's first parent
	Virtual bool   `json:"virtual,omitempty" bson:"virtual,omitempty"` // Diff pointer edge
}

// ID returns a stable identifier for e.
func (e Edge) ID() string { return e.Source + "->" + e.Target }

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is the complete drawable state of one repository tab.
type Snapshot struct {
	Repo    string `json:"repo" bson:"repo"`
	Nodes   []Node `json:"nodes" bson:"nodes"`
	Edges   []Edge `json:"edges" bson:"edges"`
	HasMore bool   `json:"has_more" bson:"has_more"`
	Loading bool   `json:"loading" bson:"loading"`
	Seq     uint64 `json:"seq" bson:"seq"`
}

// PositionsOf extracts the positions of commit nodes.
func PositionsOf(nodes []Node) Positions {
	out := make(Positions, len(nodes))
	for _, n := range nodes {
		if n.Kind == KindCommit {
			out[n.ID] = n.Position
		}
	}
	return out
}

// SortNodes orders nodes by ID for deterministic output.
func SortNodes(nodes []Node) {
	slices.SortFunc(nodes, func(a, b Node) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
