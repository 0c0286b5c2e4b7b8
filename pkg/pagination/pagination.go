// Package pagination manages the window of loaded commits for one
// repository tab.
//
// The window is held newest first, exactly as the history walk yields it,
// optionally headed by the synthetic working-copy commit. Offsets sent to the
// [Fetcher] count real commits only: the history walk knows nothing about the
// working copy, so a window of the working copy plus 50 commits asks for
// skip=50.
//
// Only one fetch per controller runs at a time. A second LoadMore or Refresh
// while one is in flight returns [ErrBusy] without touching the backend.
// Every request takes a sequence number; [Controller.Invalidate] bumps it so
// any response still in flight is discarded with [ErrSuperseded].
package pagination

import (
	"context"
	stderrors "errors"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/observability"
)

// DefaultPageSize is the number of commits fetched per page.
const DefaultPageSize = 100

var (
	// ErrBusy is returned when a fetch is already in flight. Callers treat it
	// as a no-op.
	ErrBusy = errors.New(errors.ErrCodeBusy, "a fetch is already in progress")

	// ErrSuperseded is returned when the window was invalidated while the
	// request was in flight. The response is discarded.
	ErrSuperseded = stderrors.New("response superseded by a newer request")
)

// Page is one slice of history returned by a Fetcher.
type Page struct {
	Commits []commit.Commit
	HasMore bool
}

// Fetcher pages through a repository's history, newest first.
type Fetcher interface {
	FetchCommits(ctx context.Context, repo string, limit, skip int) (Page, error)
}

// StatusFetcher reports uncommitted changes as a synthetic commit, or nil
// when the working tree is clean.
type StatusFetcher interface {
	WorkingCopy(ctx context.Context, repo string) (*commit.Commit, error)
}

// Window is the loaded slice of history.
type Window struct {
	Commits []commit.Commit
	HasMore bool
}

// Skip returns the offset of the next page: the number of real commits
// loaded.
func (w Window) Skip() int { return commit.CountReal(w.Commits) }

// Oldest returns the ID of the oldest loaded commit, or "".
func (w Window) Oldest() string {
	if len(w.Commits) == 0 {
		return ""
	}
	return w.Commits[len(w.Commits)-1].ID
}

// Result describes the window after a successful fetch.
type Result struct {
	// Commits is the whole window, newest first.
	Commits []commit.Commit
	HasMore bool
	// Anchor is the oldest commit loaded before a LoadMore, "" after Refresh.
	Anchor string
	// Added counts commits new to the window.
	Added int
	Seq   uint64
}

// Options configures a Controller.
type Options struct {
	PageSize int
	Logger   *log.Logger
}

// Controller owns one repository's window.
type Controller struct {
	repo     string
	fetcher  Fetcher
	status   StatusFetcher
	pageSize int
	log      *log.Logger

	mu       sync.Mutex
	window   Window
	seq      uint64
	inflight uint64 // seq of the running request, 0 when idle
}

// New creates a controller for repo. status may be nil.
func New(repo string, fetcher Fetcher, status StatusFetcher, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		repo:     repo,
		fetcher:  fetcher,
		status:   status,
		pageSize: opts.PageSize,
		log:      logger,
	}
}

// Repo returns the repository path.
func (c *Controller) Repo() string { return c.repo }

// PageSize returns the effective page size.
func (c *Controller) PageSize() int { return c.pageSize }

// Window returns a copy of the loaded window.
func (c *Controller) Window() Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Window{Commits: slices.Clone(c.window.Commits), HasMore: c.window.HasMore}
}

// Busy reports whether a fetch is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != 0
}

// Seq returns the current sequence number.
func (c *Controller) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Invalidate clears the window and supersedes any request in flight.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.inflight = 0
	c.window = Window{}
}

// Restore puts w back as the window if the request numbered seq is still
// the latest one and nothing is in flight. Callers use it to undo a result
// they could not apply, so the next LoadMore asks for the same page again.
// It reports whether the window was restored.
func (c *Controller) Restore(seq uint64, w Window) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq || c.inflight != 0 {
		return false
	}
	c.window = Window{Commits: slices.Clone(w.Commits), HasMore: w.HasMore}
	return true
}

// begin claims the busy flag and returns the request's sequence number.
func (c *Controller) begin() (uint64, Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight != 0 {
		return 0, Window{}, ErrBusy
	}
	c.seq++
	c.inflight = c.seq
	return c.seq, c.window, nil
}

// finish releases the busy flag; ok is false if seq was superseded.
func (c *Controller) finish(seq uint64) bool {
	if c.inflight == seq {
		c.inflight = 0
	}
	return c.seq == seq
}

// LoadMore appends the next page of older history. If the window is empty
// it performs the initial load. When the backend has reported no more
// history it returns the current window without fetching.
func (c *Controller) LoadMore(ctx context.Context) (Result, error) {
	seq, win, err := c.begin()
	if err != nil {
		return Result{}, err
	}
	if len(win.Commits) == 0 {
		return c.reload(ctx, seq, c.pageSize)
	}
	if !win.HasMore {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.finish(seq)
		return Result{Commits: slices.Clone(win.Commits), Seq: seq}, nil
	}

	anchor := win.Oldest()
	skip := win.Skip()

	page, err := c.fetch(ctx, c.pageSize, skip)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finish(seq) {
		return Result{}, ErrSuperseded
	}
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeFetch, err, "load older commits for %s", c.repo)
	}

	seen := make(map[string]bool, len(c.window.Commits))
	for _, cm := range c.window.Commits {
		seen[cm.ID] = true
	}
	added := 0
	for _, cm := range page.Commits {
		if seen[cm.ID] || cm.IsSynthetic() {
			continue
		}
		seen[cm.ID] = true
		c.window.Commits = append(c.window.Commits, cm)
		added++
	}
	c.window.HasMore = page.HasMore

	c.log.Debug("loaded more commits", "repo", c.repo, "skip", skip, "added", added, "has_more", page.HasMore)
	return Result{
		Commits: slices.Clone(c.window.Commits),
		HasMore: c.window.HasMore,
		Anchor:  anchor,
		Added:   added,
		Seq:     seq,
	}, nil
}

// Refresh reloads the window from the newest commit, keeping at least as
// many commits as are currently loaded, and re-queries the working copy.
func (c *Controller) Refresh(ctx context.Context) (Result, error) {
	seq, win, err := c.begin()
	if err != nil {
		return Result{}, err
	}
	return c.reload(ctx, seq, max(c.pageSize, win.Skip()))
}

func (c *Controller) reload(ctx context.Context, seq uint64, limit int) (Result, error) {
	page, err := c.fetch(ctx, limit, 0)

	var wc *commit.Commit
	var statusErr error
	if err == nil && c.status != nil {
		wc, statusErr = c.status.WorkingCopy(ctx, c.repo)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finish(seq) {
		return Result{}, ErrSuperseded
	}
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeFetch, err, "load commits for %s", c.repo)
	}
	if statusErr != nil {
		// A broken status query must not hide history.
		c.log.Warn("working copy status failed", "repo", c.repo, "err", statusErr)
	}

	commits := make([]commit.Commit, 0, len(page.Commits)+1)
	if wc != nil {
		commits = append(commits, *wc)
	}
	seen := make(map[string]bool, len(page.Commits))
	for _, cm := range page.Commits {
		if seen[cm.ID] || cm.IsSynthetic() {
			continue
		}
		seen[cm.ID] = true
		commits = append(commits, cm)
	}

	c.window = Window{Commits: commits, HasMore: page.HasMore}
	c.log.Debug("loaded commits", "repo", c.repo, "count", len(commits), "has_more", page.HasMore)
	return Result{
		Commits: slices.Clone(commits),
		HasMore: page.HasMore,
		Added:   len(commits),
		Seq:     seq,
	}, nil
}

func (c *Controller) fetch(ctx context.Context, limit, skip int) (Page, error) {
	observability.Session().OnFetchStart(ctx, c.repo, limit, skip)
	start := time.Now()
	page, err := c.fetcher.FetchCommits(ctx, c.repo, limit, skip)
	observability.Session().OnFetchComplete(ctx, c.repo, len(page.Commits), time.Since(start), err)
	return page, err
}
