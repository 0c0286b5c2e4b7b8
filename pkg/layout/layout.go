package layout

import (
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/dag"
	"github.com/matzehuels/commitcanvas/pkg/dag/ordering"
	"github.com/matzehuels/commitcanvas/pkg/dag/transform"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// Default spacing in graph units.
const (
	DefaultRowSpacing    = 100.0
	DefaultColumnSpacing = 200.0
)

// CyclePolicy selects how the engine reacts to a cyclic parent relation.
type CyclePolicy int

const (
	// CycleDrop removes DFS back edges, reports them in Result.Dropped and
	// lays out the remainder.
	CycleDrop CyclePolicy = iota
	// CycleFail rejects the input with a LAYOUT_ERROR.
	CycleFail
)

// ParseCyclePolicy maps a config value ("drop" or "fail") to a policy.
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch s {
	case "", "drop":
		return CycleDrop, nil
	case "fail":
		return CycleFail, nil
	}
	return CycleDrop, errors.New(errors.ErrCodeInvalidInput, "unknown cycle policy %q (want drop or fail)", s)
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	RowSpacing    float64
	ColumnSpacing float64
	Passes        int
	CyclePolicy   CyclePolicy

	Logger *log.Logger
}

// Result is the output of one layout run.
type Result struct {
	// Positions holds the default position of every commit.
	Positions graph.Positions
	// Edges lists parent→child edges between loaded commits, sorted by
	// child ID then parent index.
	Edges []graph.Edge
	// Ranks holds the longest-path rank of every commit.
	Ranks map[string]int
	// Dropped lists edges removed to break cycles.
	Dropped []graph.Edge
}

// Engine computes default positions.
type Engine struct {
	opts    Options
	orderer ordering.Orderer
	logger  *log.Logger
}

// New creates an Engine with opts, filling in defaults.
func New(opts Options) *Engine {
	if opts.RowSpacing <= 0 {
		opts.RowSpacing = DefaultRowSpacing
	}
	if opts.ColumnSpacing <= 0 {
		opts.ColumnSpacing = DefaultColumnSpacing
	}
	if opts.Passes <= 0 {
		opts.Passes = ordering.DefaultPasses
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		opts:    opts,
		orderer: ordering.Barycentric{Passes: opts.Passes},
		logger:  logger,
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Layout computes default positions for commits. Input order is irrelevant.
func (e *Engine) Layout(commits []commit.Commit) (Result, error) {
	sorted := dedupe(commits)

	g := dag.New()
	for _, c := range sorted {
		if err := g.AddNode(dag.Node{ID: c.ID}); err != nil {
			return Result{}, errors.Wrap(errors.ErrCodeLayout, err, "add commit %q", c.ID)
		}
	}

	merge := make(map[graph.Edge]bool)
	var edges []graph.Edge
	for _, c := range sorted {
		seen := make(map[string]bool, len(c.Parents))
		for _, p := range c.Parents {
			if p == c.ID || seen[p] {
				continue
			}
			seen[p] = true
			if _, ok := g.Node(p); !ok {
				continue
			}
			if err := g.AddEdge(dag.Edge{From: p, To: c.ID}); err != nil {
				return Result{}, errors.Wrap(errors.ErrCodeLayout, err, "add edge %s→%s", p, c.ID)
			}
			ge := graph.Edge{Source: p, Target: c.ID, Merge: p != c.Parents[0]}
			merge[graph.Edge{Source: p, Target: c.ID}] = ge.Merge
			edges = append(edges, ge)
		}
	}

	var dropped []graph.Edge
	if err := g.DetectCycles(); err != nil {
		if e.opts.CyclePolicy == CycleFail {
			return Result{}, errors.Wrap(errors.ErrCodeLayout, err, "commit graph is not acyclic")
		}
		for _, de := range transform.BreakCycles(g) {
			key := graph.Edge{Source: de.From, Target: de.To}
			dropped = append(dropped, graph.Edge{Source: de.From, Target: de.To, Merge: merge[key]})
		}
		edges = slices.DeleteFunc(edges, func(ge graph.Edge) bool {
			return slices.ContainsFunc(dropped, func(d graph.Edge) bool {
				return d.Source == ge.Source && d.Target == ge.Target
			})
		})
		e.logger.Warn("dropped cyclic parent edges", "count", len(dropped))
	}

	transform.AssignLayers(g)
	ranks := make(map[string]int, g.NodeCount())
	for _, n := range g.Nodes() {
		ranks[n.ID] = n.Row
	}

	transform.Subdivide(g)
	orders := e.orderer.OrderRows(g)

	positions := make(graph.Positions, len(ranks))
	for row, ids := range orders {
		for col, id := range ids {
			if _, ok := ranks[id]; !ok {
				continue
			}
			positions[id] = graph.Position{
				X: float64(col) * e.opts.ColumnSpacing,
				Y: float64(row) * e.opts.RowSpacing,
			}
		}
	}

	e.logger.Debug("layout computed", "commits", len(sorted), "edges", len(edges), "ranks", g.RowCount())

	return Result{
		Positions: positions,
		Edges:     edges,
		Ranks:     ranks,
		Dropped:   dropped,
	}, nil
}

// dedupe keeps the first occurrence of each ID and sorts by ID.
func dedupe(commits []commit.Commit) []commit.Commit {
	seen := make(map[string]bool, len(commits))
	out := make([]commit.Commit, 0, len(commits))
	for _, c := range commits {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b commit.Commit) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}
