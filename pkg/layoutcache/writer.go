package layoutcache

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// DefaultDebounce is the quiet period before a scheduled write is issued.
const DefaultDebounce = 500 * time.Millisecond

// WriterOptions configures a Writer. Zero values select defaults.
type WriterOptions struct {
	// Delay is the trailing-edge debounce interval.
	Delay time.Duration
	// Attempts and Backoff control retries of Retryable errors.
	Attempts int
	Backoff  time.Duration
	// OnError is called after a write finally fails.
	OnError func(repo string, err error)

	Logger *log.Logger
}

// Writer coalesces layout writes per repository. Each Schedule call replaces
// the pending positions for that repository and restarts its timer; the
// write happens once the timer expires without another Schedule. Writes are
// merged into the stored layout (see [Merge]).
type Writer struct {
	store Store
	opts  WriterOptions
	log   *log.Logger

	mu       sync.Mutex
	idle     *sync.Cond // signalled when a repo's running count drops
	pending  map[string]*pendingWrite
	running  map[string]int
	gen      uint64
	closed   bool
	inflight sync.WaitGroup
}

type pendingWrite struct {
	timer     *time.Timer
	gen       uint64
	positions graph.Positions
}

// NewWriter creates a Writer persisting to store.
func NewWriter(store Store, opts WriterOptions) *Writer {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDebounce
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	w := &Writer{
		store:   store,
		opts:    opts,
		log:     logger,
		pending: make(map[string]*pendingWrite),
		running: make(map[string]int),
	}
	w.idle = sync.NewCond(&w.mu)
	return w
}

// Schedule queues positions for repo, replacing anything already pending.
// It never blocks on I/O. Calls after Close are ignored.
func (w *Writer) Schedule(repo string, positions graph.Positions) {
	repo = NormalizeRepoPath(repo)
	snapshot := positions.Clone()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if p, ok := w.pending[repo]; ok {
		p.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.pending[repo] = &pendingWrite{
		gen:       gen,
		positions: snapshot,
		timer:     time.AfterFunc(w.opts.Delay, func() { w.fire(repo, gen) }),
	}
}

// Pending reports whether a write for repo is waiting on its timer.
func (w *Writer) Pending(repo string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[NormalizeRepoPath(repo)]
	return ok
}

// Cancel drops any pending write for repo and waits for writes to repo
// that already started. Once it returns, nothing scheduled before the call
// reaches the store.
func (w *Writer) Cancel(repo string) {
	repo = NormalizeRepoPath(repo)
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[repo]; ok {
		p.timer.Stop()
		delete(w.pending, repo)
	}
	for w.running[repo] > 0 {
		w.idle.Wait()
	}
}

func (w *Writer) fire(repo string, gen uint64) {
	w.mu.Lock()
	p, ok := w.pending[repo]
	if !ok || p.gen != gen {
		w.mu.Unlock()
		return
	}
	delete(w.pending, repo)
	w.running[repo]++
	w.inflight.Add(1)
	w.mu.Unlock()

	defer w.inflight.Done()
	w.write(context.Background(), repo, p.positions)
}

// write persists positions. The caller must have counted it in running.
func (w *Writer) write(ctx context.Context, repo string, positions graph.Positions) error {
	defer func() {
		w.mu.Lock()
		if w.running[repo]--; w.running[repo] <= 0 {
			delete(w.running, repo)
		}
		w.idle.Broadcast()
		w.mu.Unlock()
	}()

	err := Retry(ctx, w.opts.Attempts, w.opts.Backoff, func() error {
		return Merge(ctx, w.store, repo, positions)
	})
	if err != nil {
		w.log.Error("persist layout", "repo", repo, "err", err)
		if w.opts.OnError != nil {
			w.opts.OnError(repo, err)
		}
		return err
	}
	w.log.Debug("layout persisted", "repo", repo, "nodes", len(positions))
	return nil
}

// Flush writes every pending layout now and waits for in-flight writes.
// It returns the first error encountered.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]*pendingWrite)
	for repo, p := range pending {
		p.timer.Stop()
		w.running[repo]++
	}
	w.mu.Unlock()

	var firstErr error
	for repo, p := range pending {
		if err := w.write(ctx, repo, p.positions); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.inflight.Wait()
	return firstErr
}

// Close flushes pending writes and stops accepting new ones. The underlying
// store is not closed.
func (w *Writer) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return w.Flush(context.Background())
}
