// Package watch refreshes open sessions when a repository changes on disk.
//
// A Watcher observes the git metadata of each registered repository (the
// git dir itself, which catches HEAD and index updates, plus the refs/ and
// logs/ trees) and the top level of its working tree. Bursts of events are
// debounced per repository; once a repository goes quiet the change callback
// runs once.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/commitcanvas/pkg/session"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// OnChange runs after a repository has been quiet for Debounce.
	OnChange func(repo string)
	Logger   *log.Logger
}

// Watcher maps filesystem events to repository refreshes.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	onChange func(repo string)
	log      *log.Logger

	mu     sync.Mutex
	paths  map[string][]string // watched path -> repos
	timers map[string]*time.Timer

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Watcher. Call Start to begin processing events.
func New(opts Options) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.OnChange == nil {
		opts.OnChange = func(string) {}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		fs:       fs,
		debounce: opts.Debounce,
		onChange: opts.OnChange,
		log:      logger,
		paths:    make(map[string][]string),
		timers:   make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// RefreshSessions returns an OnChange callback that refreshes every session
// of m open on the changed repository.
func RefreshSessions(m *session.Manager, timeout time.Duration, logger *log.Logger) func(string) {
	if logger == nil {
		logger = log.Default()
	}
	return func(repo string) {
		for _, s := range m.ForRepo(repo) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			if err := s.Refresh(ctx); err != nil {
				logger.Warn("refresh after change failed", "repo", repo, "err", err)
			}
			cancel()
		}
	}
}

// Start launches the event loop.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop closes the watcher and cancels pending refreshes. It is safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.fs.Close()

		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.timers = make(map[string]*time.Timer)
		w.mu.Unlock()
	})
}

// Add starts watching repo. Adding a repository twice is a no-op.
func (w *Watcher) Add(repo string) error {
	repo = filepath.Clean(repo)
	gitDir, err := resolveGitDir(repo)
	if err != nil {
		return err
	}

	w.watch(repo, repo)
	w.watch(gitDir, repo)
	w.watchTree(filepath.Join(gitDir, "refs"), repo)
	w.watchTree(filepath.Join(gitDir, "logs"), repo)
	w.log.Debug("watching repository", "repo", repo, "gitdir", gitDir)
	return nil
}

// Remove stops watching repo and drops its pending refresh.
func (w *Watcher) Remove(repo string) {
	repo = filepath.Clean(repo)

	w.mu.Lock()
	var unwatch []string
	for path, repos := range w.paths {
		kept := slices.DeleteFunc(slices.Clone(repos), func(r string) bool { return r == repo })
		if len(kept) == 0 {
			delete(w.paths, path)
			unwatch = append(unwatch, path)
		} else {
			w.paths[path] = kept
		}
	}
	if t, ok := w.timers[repo]; ok {
		t.Stop()
		delete(w.timers, repo)
	}
	w.mu.Unlock()

	for _, path := range unwatch {
		_ = w.fs.Remove(path)
	}
}

// Repos returns the watched repositories in sorted order.
func (w *Watcher) Repos() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, repos := range w.paths {
		for _, r := range repos {
			if !slices.Contains(out, r) {
				out = append(out, r)
			}
		}
	}
	slices.Sort(out)
	return out
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "err", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if strings.HasSuffix(ev.Name, ".lock") {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			parents := slices.Clone(w.paths[filepath.Dir(ev.Name)])
			w.mu.Unlock()
			for _, repo := range parents {
				// New ref namespaces (refs/heads/feature/) need their own watch.
				if w.inMetadata(ev.Name, repo) {
					w.watchTree(ev.Name, repo)
				}
			}
		}
	}
	for _, repo := range w.reposFor(ev.Name) {
		w.schedule(repo)
	}
}

// inMetadata reports whether path lies inside repo's git dir.
func (w *Watcher) inMetadata(path, repo string) bool {
	gitDir, err := resolveGitDir(repo)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(gitDir, path)
	return err == nil && !strings.HasPrefix(rel, "..")
}

// reposFor returns the repositories owning path or its closest watched
// ancestor.
func (w *Watcher) reposFor(path string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for dir := path; ; dir = filepath.Dir(dir) {
		if repos, ok := w.paths[dir]; ok {
			return slices.Clone(repos)
		}
		if parent := filepath.Dir(dir); parent == dir {
			return nil
		}
	}
}

func (w *Watcher) schedule(repo string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.stop:
		return
	default:
	}
	if t, ok := w.timers[repo]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[repo] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, repo)
		w.mu.Unlock()
		w.log.Debug("repository changed", "repo", repo)
		w.onChange(repo)
	})
}

func (w *Watcher) watch(path, repo string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	w.mu.Lock()
	repos := w.paths[path]
	first := len(repos) == 0
	if !slices.Contains(repos, repo) {
		w.paths[path] = append(repos, repo)
	}
	w.mu.Unlock()

	if first {
		if err := w.fs.Add(path); err != nil {
			w.log.Warn("watch path failed", "path", path, "err", err)
		}
	}
}

func (w *Watcher) watchTree(dir, repo string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			w.watch(path, repo)
		}
		return nil
	})
}

// resolveGitDir returns the metadata directory of the repository at repo.
// For linked worktrees .git is a file of the form "gitdir: <path>".
func resolveGitDir(repo string) (string, error) {
	dotGit := filepath.Join(repo, ".git")
	info, err := os.Lstat(dotGit)
	if err != nil {
		return "", fmt.Errorf("no .git in %s: %w", repo, err)
	}
	if info.IsDir() {
		return dotGit, nil
	}

	data, err := os.ReadFile(dotGit)
	if err != nil {
		return "", fmt.Errorf("read .git file: %w", err)
	}
	content := strings.TrimSpace(string(data))
	gitDir, ok := strings.CutPrefix(content, "gitdir: ")
	if !ok {
		return "", fmt.Errorf("unexpected .git file content: %s", content)
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(repo, gitDir)
	}
	gitDir = filepath.Clean(gitDir)
	if _, err := os.Stat(gitDir); err != nil {
		return "", fmt.Errorf("resolved gitdir %s: %w", gitDir, err)
	}
	return gitDir, nil
}
