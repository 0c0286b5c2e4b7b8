package dag

import (
	"errors"
	"maps"
	"slices"
)

// Errors returned when building or checking a graph.
var (
	ErrInvalidNodeID       = errors.New("node ID must not be empty")
	ErrDuplicateNodeID     = errors.New("duplicate node ID")
	ErrUnknownSourceNode   = errors.New("unknown source node")
	ErrUnknownTargetNode   = errors.New("unknown target node")
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")

	// ErrNonConsecutiveRows means an edge skips a row. Subdivide long edges
	// before ordering.
	ErrNonConsecutiveRows = errors.New("edges must connect consecutive rows")

	// ErrGraphHasCycle means the input is not a history: commits cannot be
	// their own ancestors.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// NodeKind tells commits apart from lane points added during layout.
type NodeKind int

const (
	NodeKindRegular NodeKind = iota
	// NodeKindSubdivider marks a lane point on a parent link that spans
	// several rows.
	NodeKindSubdivider
)

// Node is one vertex of the layout graph. Row 0 holds the oldest commits.
type Node struct {
	ID   string
	Row  int
	Kind NodeKind
	// LeadsTo names the child commit a chain of subdividers ends in.
	LeadsTo string
}

// IsSubdivider reports whether the node is a lane point.
func (n Node) IsSubdivider() bool { return n.Kind == NodeKindSubdivider }

// Edge points from a parent to one of its children.
type Edge struct {
	From string
	To   string
}

type links struct {
	children []string
	parents  []string
}

// DAG holds commits and their parent links, bucketed by row. Use New.
type DAG struct {
	nodes map[string]*Node
	adj   map[string]*links
	edges []Edge
	rows  map[int][]*Node
}

// New returns an empty graph.
func New() *DAG {
	return &DAG{
		nodes: map[string]*Node{},
		adj:   map[string]*links{},
		rows:  map[int][]*Node{},
	}
}

// AddNode inserts n into its row bucket.
func (d *DAG) AddNode(n Node) error {
	switch {
	case n.ID == "":
		return ErrInvalidNodeID
	case d.nodes[n.ID] != nil:
		return ErrDuplicateNodeID
	}
	d.nodes[n.ID] = &n
	d.adj[n.ID] = &links{}
	d.rows[n.Row] = append(d.rows[n.Row], &n)
	return nil
}

// AddEdge links two existing nodes. Rows are checked by Validate, not here,
// so layering can run after the edges are in place.
func (d *DAG) AddEdge(e Edge) error {
	from, ok := d.adj[e.From]
	if !ok {
		return ErrUnknownSourceNode
	}
	to, ok := d.adj[e.To]
	if !ok {
		return ErrUnknownTargetNode
	}
	d.edges = append(d.edges, e)
	from.children = append(from.children, e.To)
	to.parents = append(to.parents, e.From)
	return nil
}

// RemoveEdge drops every from→to edge. Missing edges are ignored.
func (d *DAG) RemoveEdge(from, to string) {
	d.edges = slices.DeleteFunc(d.edges, func(e Edge) bool { return e == Edge{From: from, To: to} })
	if l, ok := d.adj[from]; ok {
		l.children = slices.DeleteFunc(l.children, func(id string) bool { return id == to })
	}
	if l, ok := d.adj[to]; ok {
		l.parents = slices.DeleteFunc(l.parents, func(id string) bool { return id == from })
	}
}

// SetRows moves nodes to new rows and re-buckets the whole graph in ID
// order. Nodes missing from rows stay where they are.
func (d *DAG) SetRows(rows map[string]int) {
	d.rows = map[int][]*Node{}
	for _, n := range d.Nodes() {
		if r, ok := rows[n.ID]; ok {
			n.Row = r
		}
		d.rows[n.Row] = append(d.rows[n.Row], n)
	}
}

// Node looks up a node by ID.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns the graph's nodes ordered by ID.
func (d *DAG) Nodes() []*Node {
	ids := slices.Sorted(maps.Keys(d.nodes))
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = d.nodes[id]
	}
	return out
}

// Edges returns a copy of the edges in the order they were added.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

func (d *DAG) NodeCount() int { return len(d.nodes) }
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children and Parents return the graph's own slices; do not modify them.
func (d *DAG) Children(id string) []string {
	if l, ok := d.adj[id]; ok {
		return l.children
	}
	return nil
}

func (d *DAG) Parents(id string) []string {
	if l, ok := d.adj[id]; ok {
		return l.parents
	}
	return nil
}

func (d *DAG) InDegree(id string) int { return len(d.Parents(id)) }

// NodesInRow returns the nodes bucketed under row.
func (d *DAG) NodesInRow(row int) []*Node { return d.rows[row] }

// RowCount is the number of non-empty rows.
func (d *DAG) RowCount() int { return len(d.rows) }

// RowIDs lists the non-empty rows, lowest first.
func (d *DAG) RowIDs() []int { return slices.Sorted(maps.Keys(d.rows)) }

// MaxRow is the deepest row, or 0 when the graph is empty.
func (d *DAG) MaxRow() int {
	top := 0
	for r := range d.rows {
		top = max(top, r)
	}
	return top
}

// Sources returns the root commits (no parents), ordered by ID.
func (d *DAG) Sources() []*Node {
	return slices.DeleteFunc(d.Nodes(), func(n *Node) bool { return d.InDegree(n.ID) > 0 })
}

// Validate checks that each edge joins known nodes one row apart and that
// there is no cycle.
func (d *DAG) Validate() error {
	for _, e := range d.edges {
		from, to := d.nodes[e.From], d.nodes[e.To]
		if from == nil || to == nil {
			return ErrInvalidEdgeEndpoint
		}
		if to.Row-from.Row != 1 {
			return ErrNonConsecutiveRows
		}
	}
	return d.DetectCycles()
}

// DetectCycles reports ErrGraphHasCycle when some node reaches itself.
// It peels nodes with no remaining parents (Kahn's algorithm); anything
// left over sits on a cycle.
func (d *DAG) DetectCycles() error {
	pending := make(map[string]int, len(d.nodes))
	var ready []string
	for id, l := range d.adj {
		pending[id] = len(l.parents)
		if len(l.parents) == 0 {
			ready = append(ready, id)
		}
	}
	seen := 0
	for len(ready) > 0 {
		id := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		seen++
		for _, child := range d.adj[id].children {
			pending[child]--
			if pending[child] == 0 {
				ready = append(ready, child)
			}
		}
	}
	if seen < len(d.nodes) {
		return ErrGraphHasCycle
	}
	return nil
}

// PosMap indexes ids by position.
func PosMap(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

// NodeIDs returns the IDs of nodes, in order.
func NodeIDs(nodes []*Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
