package session

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/diffpointer"
	"github.com/matzehuels/commitcanvas/pkg/drag"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
	"github.com/matzehuels/commitcanvas/pkg/layout"
	"github.com/matzehuels/commitcanvas/pkg/layoutcache"
	"github.com/matzehuels/commitcanvas/pkg/observability"
	"github.com/matzehuels/commitcanvas/pkg/pagination"
	"github.com/matzehuels/commitcanvas/pkg/reconcile"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New(errors.ErrCodeInvalidInput, "session is closed")

// RefLister lists the refs of a repository.
type RefLister interface {
	FetchAllRefs(ctx context.Context, repo string) ([]commit.Ref, error)
}

// Config wires a GraphSession to its collaborators. Only Repo and Fetcher
// are required.
type Config struct {
	Repo    string
	Fetcher pagination.Fetcher
	Status  pagination.StatusFetcher
	Differ  diffpointer.Differ
	Refs    RefLister
	// Store defaults to a NullStore. It is shared and never closed by the
	// session.
	Store    layoutcache.Store
	Surface  Surface
	Notifier Notifier

	Layout         layout.Options
	PageSize       int
	SubtreeDefault bool
	WriteDelay     time.Duration

	Logger *log.Logger
}

// GraphSession is the state of one repository tab. It is safe for
// concurrent use.
type GraphSession struct {
	repo     string
	refs     RefLister
	differ   diffpointer.Differ
	store    layoutcache.Store
	surface  Surface
	notifier Notifier
	engine   *layout.Engine
	pager    *pagination.Controller
	writer   *layoutcache.Writer
	log      *log.Logger

	mu      sync.Mutex
	commits []commit.Commit // newest first
	nodes   []graph.Node    // commit nodes, window order
	index   map[string]int  // node ID -> position in nodes
	edges   []graph.Edge    // parent -> child, never virtual
	live    graph.Positions
	hasMore bool
	seq     uint64 // pagination seq of the applied result
	minSeq  uint64 // results older than this predate the last Open
	tracker drag.Tracker
	pointer *diffpointer.Pointer
	closed  bool
}

// New creates a session. Call Open to load the first page.
func New(cfg Config) (*GraphSession, error) {
	if err := errors.ValidateRepoPath(cfg.Repo); err != nil {
		return nil, err
	}
	if cfg.Fetcher == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "a commit fetcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Store == nil {
		cfg.Store = layoutcache.NullStore{}
	}
	if cfg.Surface == nil {
		cfg.Surface = discardSurface{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = discardNotifier{}
	}
	if cfg.Layout.Logger == nil {
		cfg.Layout.Logger = logger
	}

	s := &GraphSession{
		repo:     cfg.Repo,
		refs:     cfg.Refs,
		differ:   cfg.Differ,
		store:    cfg.Store,
		surface:  cfg.Surface,
		notifier: cfg.Notifier,
		engine:   layout.New(cfg.Layout),
		pager: pagination.New(cfg.Repo, cfg.Fetcher, cfg.Status, pagination.Options{
			PageSize: cfg.PageSize,
			Logger:   logger,
		}),
		log:     logger,
		index:   make(map[string]int),
		live:    make(graph.Positions),
		pointer: diffpointer.New(cfg.Repo, cfg.Differ),
	}
	s.tracker.Mode = drag.Mode{SubtreeDefault: cfg.SubtreeDefault}
	s.writer = layoutcache.NewWriter(cfg.Store, layoutcache.WriterOptions{
		Delay:  cfg.WriteDelay,
		Logger: logger,
		OnError: func(_ string, err error) {
			s.notify(LevelError, err)
		},
	})
	return s, nil
}

// Repo returns the repository path.
func (s *GraphSession) Repo() string { return s.repo }

// Open discards any loaded state and loads the newest page.
func (s *GraphSession) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.pager.Invalidate()
	s.minSeq = s.pager.Seq()
	s.resetLocked()
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh reloads the window from the newest commit. Positions on screen
// are kept. A refresh while another fetch runs is a no-op.
func (s *GraphSession) Refresh(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.pager.Refresh(ctx)
	return s.apply(ctx, res, err)
}

// LoadMore pages in older history. Nodes already on screen keep their
// positions and the new nodes are placed relative to the oldest of them.
func (s *GraphSession) LoadMore(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.pager.LoadMore(ctx)
	return s.apply(ctx, res, err)
}

func (s *GraphSession) apply(ctx context.Context, res pagination.Result, err error) error {
	switch {
	case err == nil:
	case stderrors.Is(err, pagination.ErrBusy), stderrors.Is(err, pagination.ErrSuperseded):
		s.log.Debug("fetch skipped", "repo", s.repo, "reason", err)
		return nil
	default:
		s.notify(LevelError, err)
		return err
	}

	cached := s.loadCached(ctx)

	s.mu.Lock()
	if s.closed || res.Seq < s.minSeq || res.Seq <= s.seq {
		s.mu.Unlock()
		s.log.Debug("stale result dropped", "repo", s.repo, "seq", res.Seq)
		return nil
	}
	err = s.recomputeLocked(ctx, res.Commits, res.HasMore, res.Anchor, cached)
	if err == nil {
		s.seq = res.Seq
	} else {
		// The pager already holds the new window; rewind it to what is on
		// screen so the failed page is fetched again next time.
		s.pager.Restore(res.Seq, pagination.Window{Commits: s.commits, HasMore: s.hasMore})
	}
	s.mu.Unlock()

	if err != nil {
		s.notify(LevelError, err)
	}
	return err
}

// loadCached reads the stored layout. A failed read is reported and
// treated as an empty layout so history still shows.
func (s *GraphSession) loadCached(ctx context.Context) graph.Positions {
	cached, err := s.store.Get(ctx, s.repo)
	if err != nil {
		s.notify(LevelWarning, err)
		return nil
	}
	return cached
}

// recomputeLocked runs the layout pipeline over commits and pushes the
// result. On error nothing changes.
func (s *GraphSession) recomputeLocked(ctx context.Context, commits []commit.Commit, hasMore bool, anchor string, cached graph.Positions) error {
	start := time.Now()
	oldest := commit.Reversed(commits)

	lay, err := s.engine.Layout(oldest)
	if err != nil {
		return err
	}
	if len(lay.Dropped) > 0 {
		s.log.Warn("cyclic history, edges dropped", "repo", s.repo, "edges", len(lay.Dropped))
	}

	rec := reconcile.Reconcile(reconcile.Input{
		Commits:  oldest,
		Defaults: lay.Positions,
		Cached:   cached,
		Live:     s.live,
		Anchor:   anchor,
	})

	nodes := make([]graph.Node, 0, len(commits))
	index := make(map[string]int, len(commits))
	for _, c := range commits {
		if _, dup := index[c.ID]; dup {
			continue
		}
		index[c.ID] = len(nodes)
		nodes = append(nodes, graph.NewCommitNode(c, rec.Positions[c.ID]))
	}

	s.commits = commits
	s.nodes = nodes
	s.index = index
	s.edges = lay.Edges
	s.live = rec.Positions
	s.hasMore = hasMore

	if src := s.pointer.Source(); src != "" {
		if _, ok := index[src]; !ok {
			s.pointer.Cancel()
		}
	}
	if d := s.tracker.Active(); d != nil {
		if _, ok := index[d.DraggedID]; !ok {
			s.tracker.End()
		}
	}

	elapsed := time.Since(start)
	observability.Session().OnReconcile(ctx, s.repo, rec.Mode.String(), len(nodes), elapsed)
	s.log.Debug("graph reconciled", "repo", s.repo, "mode", rec.Mode, "nodes", len(nodes), "edges", len(lay.Edges), "took", elapsed)

	s.pushLocked()
	return nil
}

func (s *GraphSession) resetLocked() {
	s.commits = nil
	s.nodes = nil
	s.index = make(map[string]int)
	s.edges = nil
	s.live = make(graph.Positions)
	s.hasMore = false
	s.tracker.End()
	s.pointer.Cancel()
}

// =============================================================================
// Drag
// =============================================================================

// BeginDrag starts dragging nodeID. Holding the modifier inverts the
// subtree default for this gesture.
func (s *GraphSession) BeginDrag(nodeID string, modifierHeld bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if nodeID == diffpointer.VirtualNodeID {
		return errors.New(errors.ErrCodeInvalidInput, "the diff pointer cannot be dragged")
	}
	pos, ok := s.live[nodeID]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "node %s is not loaded", nodeID)
	}
	d := s.tracker.Begin(nodeID, pos, modifierHeld)
	s.log.Debug("drag started", "repo", s.repo, "node", nodeID, "subtree", d.Subtree)
	return nil
}

// DragMove moves the dragged node to (x, y) and its descendants by the same
// delta in subtree mode. It returns the positions that changed, or nil when
// no drag is active. It never waits on I/O and does not touch the surface:
// the caller draws the returned positions, and EndDrag pushes the result.
func (s *GraphSession) DragMove(x, y float64) (graph.Positions, error) {
	pos := graph.Position{X: x, Y: y}
	if !pos.IsFinite() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "drag position must be finite")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	moved, ok := s.tracker.Move(pos, s.edges, s.live)
	if !ok {
		return nil, nil
	}
	for id, p := range moved {
		s.live[id] = p
		if i, ok := s.index[id]; ok {
			s.nodes[i].Position = p
		}
	}
	return moved, nil
}

// EndDrag finishes the drag, pushes the committed nodes to the surface and
// schedules a debounced write of every live position.
func (s *GraphSession) EndDrag(ctx context.Context) error {
	s.mu.Lock()
	d := s.tracker.End()
	if d == nil {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.live.Clone()
	s.surface.SetNodes(s.drawableNodesLocked())
	s.mu.Unlock()

	s.writer.Schedule(s.repo, snapshot)
	observability.Session().OnDragEnd(ctx, s.repo, d.DraggedID, d.Moved)
	s.log.Debug("drag ended", "repo", s.repo, "node", d.DraggedID, "moved", d.Moved)
	return nil
}

// SetSubtreeDefault sets whether drags move descendants by default.
func (s *GraphSession) SetSubtreeDefault(subtree bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Mode.SubtreeDefault = subtree
}

// SubtreeDefault reports the drag mode preference.
func (s *GraphSession) SubtreeDefault() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Mode.SubtreeDefault
}

// =============================================================================
// Diff pointer
// =============================================================================

// StartDiff arms the diff pointer on source.
func (s *GraphSession) StartDiff(source string) error {
	s.mu.Lock()
	pos, ok := s.live[source]
	var err error
	if !ok {
		err = errors.New(errors.ErrCodeNotFound, "node %s is not loaded", source)
	} else {
		err = s.pointer.Start(source, pos)
	}
	if err == nil {
		s.pushLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.notify(LevelWarning, err)
	}
	return err
}

// UpdateDiffCursor moves the pointer to graph coordinates (x, y).
func (s *GraphSession) UpdateDiffCursor(x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pointer.UpdateCursor(x, y) {
		return false
	}
	s.surface.SetNodes(s.drawableNodesLocked())
	return true
}

// UpdateDiffCursorScreen moves the pointer to screen coordinates under vp.
func (s *GraphSession) UpdateDiffCursorScreen(sx, sy float64, vp diffpointer.Viewport) bool {
	g := vp.ToGraph(sx, sy)
	return s.UpdateDiffCursor(g.X, g.Y)
}

// SelectDiffTarget completes the diff. Rejected targets keep the pointer
// armed. The diff itself runs outside the session lock.
func (s *GraphSession) SelectDiffTarget(ctx context.Context, target string) (diffpointer.Selection, error) {
	s.mu.Lock()
	var (
		sel diffpointer.Selection
		err error
	)
	if _, ok := s.live[target]; !ok && target != commit.WorkingCopyID {
		err = errors.New(errors.ErrCodeNotFound, "node %s is not loaded", target)
	} else {
		sel, err = s.pointer.Select(target)
	}
	if err == nil {
		s.pushLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.notify(LevelWarning, err)
		return sel, err
	}

	sel, err = diffpointer.Show(ctx, s.differ, s.repo, sel)
	if err != nil {
		s.notify(LevelError, err)
	}
	return sel, err
}

// CancelDiff disarms the diff pointer. It is idempotent.
func (s *GraphSession) CancelDiff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pointer.State() != diffpointer.Armed {
		return
	}
	s.pointer.Cancel()
	s.pushLocked()
}

// DiffState returns the pointer state and its source.
func (s *GraphSession) DiffState() (diffpointer.State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointer.State(), s.pointer.Source()
}

// =============================================================================
// Layout persistence
// =============================================================================

// ClearLayout forgets the saved layout and lays the loaded window out from
// scratch.
func (s *GraphSession) ClearLayout(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.writer.Cancel(s.repo)
	if err := s.store.Delete(ctx, s.repo); err != nil {
		s.notify(LevelError, err)
		return err
	}

	s.mu.Lock()
	s.tracker.End()
	s.live = make(graph.Positions)
	var err error
	if len(s.commits) > 0 {
		err = s.recomputeLocked(ctx, s.commits, s.hasMore, "", nil)
	}
	s.mu.Unlock()

	if err != nil {
		s.notify(LevelError, err)
	}
	return err
}

// Flush writes any pending layout now.
func (s *GraphSession) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

// =============================================================================
// Queries
// =============================================================================

// Refs lists the repository's refs.
func (s *GraphSession) Refs(ctx context.Context) ([]commit.Ref, error) {
	if s.refs == nil {
		return nil, nil
	}
	refs, err := s.refs.FetchAllRefs(ctx, s.repo)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeFetch, err, "list refs of %s", s.repo)
		}
		return nil, err
	}
	return refs, nil
}

// Positions returns a copy of the live positions.
func (s *GraphSession) Positions() graph.Positions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live.Clone()
}

// Commits returns the loaded window, newest first.
func (s *GraphSession) Commits() []commit.Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]commit.Commit, len(s.commits))
	for i, c := range s.commits {
		out[i] = c.Clone()
	}
	return out
}

// Snapshot returns everything currently drawn.
func (s *GraphSession) Snapshot() graph.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return graph.Snapshot{
		Repo:    s.repo,
		Nodes:   s.drawableNodesLocked(),
		Edges:   s.drawableEdgesLocked(),
		HasMore: s.hasMore,
		Loading: s.pager.Busy(),
		Seq:     s.seq,
	}
}

// Close flushes pending layout writes and rejects further fetches. It is
// idempotent.
func (s *GraphSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.tracker.End()
	s.pointer.Cancel()
	s.mu.Unlock()

	s.pager.Invalidate()
	return s.writer.Close()
}

// =============================================================================
// Internals
// =============================================================================

func (s *GraphSession) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *GraphSession) notify(level Level, err error) {
	n := notificationFor(level, err)
	if level == LevelError {
		s.log.Error(n.Message, "repo", s.repo, "code", n.Code, "err", err)
	} else {
		s.log.Warn(n.Message, "repo", s.repo, "code", n.Code)
	}
	s.notifier.Notify(n)
}

// pushLocked sends nodes, then edges.
func (s *GraphSession) pushLocked() {
	s.surface.SetNodes(s.drawableNodesLocked())
	s.surface.SetEdges(s.drawableEdgesLocked())
}

func (s *GraphSession) drawableNodesLocked() []graph.Node {
	out := make([]graph.Node, len(s.nodes), len(s.nodes)+1)
	copy(out, s.nodes)
	if n, _, ok := s.pointer.Virtual(); ok {
		out = append(out, n)
	}
	return out
}

func (s *GraphSession) drawableEdgesLocked() []graph.Edge {
	out := make([]graph.Edge, len(s.edges), len(s.edges)+1)
	copy(out, s.edges)
	if _, e, ok := s.pointer.Virtual(); ok {
		out = append(out, e)
	}
	return out
}
