package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeRepo lays out the metadata directories a real repository has.
func fakeRepo(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()
	for _, dir := range []string{".git/refs/heads", ".git/refs/tags", ".git/logs"} {
		if err := os.MkdirAll(filepath.Join(repo, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return repo
}

type changes struct {
	mu    sync.Mutex
	repos []string
}

func (c *changes) record(repo string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos = append(c.repos, repo)
}

func (c *changes) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.repos)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestWatcher(t *testing.T, c *changes) *Watcher {
	t.Helper()
	w, err := New(Options{Debounce: 50 * time.Millisecond, OnChange: c.record})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	w.Start()
	t.Cleanup(w.Stop)
	return w
}

func TestRefUpdateTriggersOneRefresh(t *testing.T) {
	repo := fakeRepo(t)
	var c changes
	w := newTestWatcher(t, &c)
	if err := w.Add(repo); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	ref := filepath.Join(repo, ".git", "refs", "heads", "main")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(ref, []byte("abc\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return c.count() >= 1 })
	time.Sleep(150 * time.Millisecond)
	if n := c.count(); n != 1 {
		t.Errorf("refreshes = %d, want 1 after a burst", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.repos[0] != filepath.Clean(repo) {
		t.Errorf("refreshed %q, want %q", c.repos[0], repo)
	}
}

func TestNewRefDirectoryIsWatched(t *testing.T) {
	repo := fakeRepo(t)
	var c changes
	w := newTestWatcher(t, &c)
	if err := w.Add(repo); err != nil {
		t.Fatal(err)
	}

	nested := filepath.Join(repo, ".git", "refs", "heads", "feature")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return c.count() >= 1 })
	waitFor(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		_, ok := w.paths[nested]
		return ok
	})

	before := c.count()
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(nested, "x"), []byte("abc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return c.count() > before })
}

func TestWorktreeChangeTriggersRefresh(t *testing.T) {
	repo := fakeRepo(t)
	var c changes
	w := newTestWatcher(t, &c)
	if err := w.Add(repo); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return c.count() == 1 })
}

func TestLockFilesIgnored(t *testing.T) {
	repo := fakeRepo(t)
	var c changes
	w := newTestWatcher(t, &c)
	if err := w.Add(repo); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, ".git", "index.lock"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := c.count(); n != 0 {
		t.Errorf("refreshes = %d, want 0 for lock files", n)
	}
}

func TestRemove(t *testing.T) {
	repo := fakeRepo(t)
	var c changes
	w := newTestWatcher(t, &c)
	if err := w.Add(repo); err != nil {
		t.Fatal(err)
	}
	if got := w.Repos(); len(got) != 1 {
		t.Fatalf("Repos() = %v", got)
	}
	w.Remove(repo)
	if got := w.Repos(); len(got) != 0 {
		t.Errorf("Repos() after Remove = %v", got)
	}

	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := c.count(); n != 0 {
		t.Errorf("refreshes = %d after Remove, want 0", n)
	}
}

func TestAddRejectsNonRepository(t *testing.T) {
	var c changes
	w := newTestWatcher(t, &c)
	if err := w.Add(t.TempDir()); err == nil {
		t.Error("Add() should fail without .git")
	}
}

func TestResolveGitDirWorktree(t *testing.T) {
	base := fakeRepo(t)
	gitDir := filepath.Join(base, ".git", "worktrees", "wt")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatal(err)
	}
	wt := t.TempDir()
	if err := os.WriteFile(filepath.Join(wt, ".git"), []byte("gitdir: "+gitDir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveGitDir(wt)
	if err != nil {
		t.Fatalf("resolveGitDir() error: %v", err)
	}
	if got != gitDir {
		t.Errorf("resolveGitDir() = %q, want %q", got, gitDir)
	}

	if err := os.WriteFile(filepath.Join(wt, ".git"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveGitDir(wt); err == nil {
		t.Error("resolveGitDir() should reject malformed .git files")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	w.Stop()
	w.Stop()
}
