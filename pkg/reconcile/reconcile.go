// Package reconcile merges default, cached and live positions into the
// positions a repository tab should display.
//
// Priority is always Live > Cached > Default. How the default and cached
// sources are translated depends on the [Mode]:
//
//   - FullReload walks commits oldest to newest. A commit with neither a live
//     nor a cached position inherits the displacement of its first already
//     resolved parent, so hand-arranged regions drag their newly discovered
//     children along.
//   - Incremental (after older history is paged in) translates every default
//     and cached position by the displacement of the anchor commit, so the
//     nodes already on screen do not jump.
//
// Reconcile is a pure function; it never mutates its inputs.
package reconcile

import (
	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// Source records where a reconciled position came from.
type Source int

const (
	SourceDefault Source = iota
	SourceDerived
	SourceCached
	SourceLive
)

func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceCached:
		return "cached"
	case SourceDerived:
		return "derived"
	}
	return "default"
}

// Mode selects the reconciliation strategy.
type Mode int

const (
	FullReload Mode = iota
	Incremental
)

func (m Mode) String() string {
	if m == Incremental {
		return "incremental"
	}
	return "full"
}

// Input is everything Reconcile consults.
type Input struct {
	// Commits in oldest-first order.
	Commits []commit.Commit
	// Defaults from the layout engine; one per commit.
	Defaults graph.Positions
	// Cached positions from the layout cache.
	Cached graph.Positions
	// Live positions currently on screen.
	Live graph.Positions
	// Anchor is the oldest commit loaded before a pagination extension.
	// Empty, or absent from Commits, selects FullReload.
	Anchor string
}

// Result holds one position per commit in Input.Commits.
type Result struct {
	Positions graph.Positions
	Sources   map[string]Source
	Mode      Mode
}

// Reconcile computes final positions.
func Reconcile(in Input) Result {
	if in.Anchor != "" && contains(in.Commits, in.Anchor) {
		return incremental(in)
	}
	return fullReload(in)
}

// fullReload walks commits oldest first. A commit keeps its live position,
// else its cached one; cached positions win over parent-derived ones, so a
// saved layout comes back exactly. Only commits with neither follow their
// first resolved parent's offset from its default, or take the default.
func fullReload(in Input) Result {
	res := newResult(FullReload, len(in.Commits))

	for _, c := range in.Commits {
		if _, done := res.Positions[c.ID]; done {
			continue
		}
		if p, ok := in.Live.Lookup(c.ID); ok {
			res.set(c.ID, p, SourceLive)
			continue
		}
		if p, ok := in.Cached.Lookup(c.ID); ok {
			res.set(c.ID, p, SourceCached)
			continue
		}

		def := in.Defaults[c.ID]
		if delta, ok := parentDelta(c, res.Positions, in.Defaults); ok {
			res.set(c.ID, def.Add(delta), SourceDerived)
			continue
		}
		res.set(c.ID, def, SourceDefault)
	}
	return res
}

// parentDelta returns resolved − default for the first parent of c that has
// already been finalized in this pass.
func parentDelta(c commit.Commit, resolved, defaults graph.Positions) (graph.Position, bool) {
	for _, p := range c.Parents {
		rp, ok := resolved[p]
		if !ok {
			continue
		}
		dp, ok := defaults[p]
		if !ok {
			continue
		}
		return rp.Sub(dp), true
	}
	return graph.Position{}, false
}

func incremental(in Input) Result {
	res := newResult(Incremental, len(in.Commits))

	var defaultDelta, cacheDelta graph.Position
	if live, ok := in.Live.Lookup(in.Anchor); ok {
		if def, ok := in.Defaults[in.Anchor]; ok {
			defaultDelta = live.Sub(def)
		}
		if cached, ok := in.Cached.Lookup(in.Anchor); ok {
			cacheDelta = live.Sub(cached)
		}
	}

	for _, c := range in.Commits {
		if _, done := res.Positions[c.ID]; done {
			continue
		}
		if p, ok := in.Live.Lookup(c.ID); ok {
			res.set(c.ID, p, SourceLive)
			continue
		}
		if p, ok := in.Cached.Lookup(c.ID); ok {
			res.set(c.ID, p.Add(cacheDelta), SourceCached)
			continue
		}
		res.set(c.ID, in.Defaults[c.ID].Add(defaultDelta), SourceDefault)
	}
	return res
}

func newResult(mode Mode, n int) Result {
	return Result{
		Positions: make(graph.Positions, n),
		Sources:   make(map[string]Source, n),
		Mode:      mode,
	}
}

func (r *Result) set(id string, p graph.Position, src Source) {
	r.Positions[id] = p
	r.Sources[id] = src
}

func contains(commits []commit.Commit, id string) bool {
	for _, c := range commits {
		if c.ID == id {
			return true
		}
	}
	return false
}
