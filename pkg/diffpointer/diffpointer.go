// Package diffpointer implements the transient pointer used to pick a diff
// target.
//
// Starting a diff arms the pointer on a source commit. While armed, a
// zero-size virtual node follows the cursor and a virtual edge joins the
// source to it; neither is ever persisted. Selecting a real target hands the
// pair to a [Differ] and disarms the pointer. Cancel disarms it without a
// diff.
//
//	Idle --Start(src)--> Armed(src) --UpdateCursor--> Armed(src)
//	Armed --Cancel--> Idle
//	Armed --SelectTarget(dst)--> Idle
//
// A Pointer is not safe for concurrent use; the owning session serializes
// access.
package diffpointer

import (
	"context"

	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// VirtualNodeID is the ID of the node that tracks the cursor.
const VirtualNodeID = "__diff_target__"

// State is the pointer's state.
type State int

const (
	Idle State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "idle"
}

// Viewport is the screen-to-graph transform of the rendering surface.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// ToGraph converts screen coordinates into graph space. A non-positive
// zoom is treated as 1.
func (v Viewport) ToGraph(sx, sy float64) graph.Position {
	z := v.Zoom
	if z <= 0 {
		z = 1
	}
	return graph.Position{X: (sx - v.X) / z, Y: (sy - v.Y) / z}
}

// Differ renders the diff between two commits.
type Differ interface {
	Show(ctx context.Context, repo, source, target string) (string, error)
}

// Selection is a completed source/target pair.
type Selection struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Patch  string `json:"patch,omitempty"`
}

// Pointer is the diff-pointer state machine for one repository.
type Pointer struct {
	repo   string
	differ Differ

	state  State
	source string
	cursor graph.Position
}

// New creates an idle pointer. differ may be nil, in which case
// SelectTarget only reports the pair.
func New(repo string, differ Differ) *Pointer {
	return &Pointer{repo: repo, differ: differ}
}

// State returns the current state.
func (p *Pointer) State() State { return p.state }

// Source returns the armed source commit, or "".
func (p *Pointer) Source() string { return p.source }

// Cursor returns the last cursor position in graph space.
func (p *Pointer) Cursor() graph.Position { return p.cursor }

// Start arms the pointer on source at the given cursor position. Starting
// again while armed moves the source.
func (p *Pointer) Start(source string, at graph.Position) error {
	if source == "" {
		return errors.New(errors.ErrCodeInvalidInput, "diff source is required")
	}
	if source == commit.WorkingCopyID {
		return errors.New(errors.ErrCodeNotDiffable, "uncommitted changes cannot be a diff source")
	}
	p.state = Armed
	p.source = source
	p.cursor = at
	return nil
}

// UpdateCursor moves the virtual node. It is ignored while idle and
// reports whether the pointer moved.
func (p *Pointer) UpdateCursor(x, y float64) bool {
	if p.state != Armed {
		return false
	}
	next := graph.Position{X: x, Y: y}
	if !next.IsFinite() {
		return false
	}
	p.cursor = next
	return true
}

// UpdateCursorScreen is UpdateCursor for screen coordinates.
func (p *Pointer) UpdateCursorScreen(sx, sy float64, vp Viewport) bool {
	g := vp.ToGraph(sx, sy)
	return p.UpdateCursor(g.X, g.Y)
}

// Select validates target and disarms the pointer. It does not call the
// Differ, so callers holding a lock can run the diff afterwards.
//
// Selecting the working copy fails with NOT_DIFFABLE and selecting the
// source itself with INVALID_INPUT; in both cases the pointer stays armed.
func (p *Pointer) Select(target string) (Selection, error) {
	if p.state != Armed {
		return Selection{}, errors.New(errors.ErrCodeInvalidInput, "no diff in progress")
	}
	if target == commit.WorkingCopyID {
		return Selection{}, errors.New(errors.ErrCodeNotDiffable, "uncommitted changes cannot be a diff target")
	}
	if target == "" || target == p.source {
		return Selection{}, errors.New(errors.ErrCodeInvalidInput, "pick a commit other than %s", p.source)
	}
	sel := Selection{Source: p.source, Target: target}
	p.Cancel()
	return sel, nil
}

// SelectTarget selects target and hands the pair to the Differ.
func (p *Pointer) SelectTarget(ctx context.Context, target string) (Selection, error) {
	sel, err := p.Select(target)
	if err != nil {
		return sel, err
	}
	return Show(ctx, p.differ, p.repo, sel)
}

// Show runs differ for sel. A nil differ returns sel unchanged.
func Show(ctx context.Context, differ Differ, repo string, sel Selection) (Selection, error) {
	if differ == nil {
		return sel, nil
	}
	patch, err := differ.Show(ctx, repo, sel.Source, sel.Target)
	if err != nil {
		return sel, errors.Wrap(errors.ErrCodeFetch, err, "diff %s..%s", short(sel.Source), short(sel.Target))
	}
	sel.Patch = patch
	return sel, nil
}

// Cancel disarms the pointer. It is idempotent.
func (p *Pointer) Cancel() {
	p.state = Idle
	p.source = ""
	p.cursor = graph.Position{}
}

// Virtual returns the virtual node and edge while armed.
func (p *Pointer) Virtual() (graph.Node, graph.Edge, bool) {
	if p.state != Armed {
		return graph.Node{}, graph.Edge{}, false
	}
	return graph.NewVirtualNode(VirtualNodeID, p.cursor),
		graph.Edge{Source: p.source, Target: VirtualNodeID, Virtual: true},
		true
}

func short(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}
