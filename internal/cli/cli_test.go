package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/matzehuels/commitcanvas/pkg/buildinfo"
	"github.com/matzehuels/commitcanvas/pkg/commit"
	cerrors "github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
	"github.com/matzehuels/commitcanvas/pkg/layoutcache"
)

// env is a repository on disk plus a config file pointing the layout cache
// at a scratch directory.
type env struct {
	repo     string
	hashes   []string
	cacheDir string
	config   string
	out      string
}

func newEnv(t *testing.T, commits int) *env {
	t.Helper()
	repo := t.TempDir()
	r, err := git.PlainInit(repo, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := r.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	e := &env{repo: repo, cacheDir: t.TempDir(), out: t.TempDir()}
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := range commits {
		name := fmt.Sprintf("file%d.txt", i)
		writeFile(t, filepath.Join(repo, name), fmt.Sprintf("line %d\n", i))
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
		h, err := wt.Commit(fmt.Sprintf("commit %d", i), &git.CommitOptions{
			Author: &object.Signature{Name: "Test", Email: "test@example.com", When: when.Add(time.Duration(i) * time.Minute)},
		})
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		e.hashes = append(e.hashes, h.String())
	}

	e.config = filepath.Join(e.out, "config.toml")
	writeFile(t, e.config, fmt.Sprintf("[cache]\nbackend = \"file\"\ndir = %q\n\n[drag]\nwrite_delay = \"10ms\"\n", e.cacheDir))
	return e
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

// run executes the root command and returns its stdout.
func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	old := statusOut
	statusOut = io.Discard
	defer func() { statusOut = old }()

	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

// mustRun is run for commands expected to succeed.
func (e *env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func (e *env) snapshot(t *testing.T, args ...string) graph.Snapshot {
	t.Helper()
	var snap graph.Snapshot
	if err := json.Unmarshal([]byte(e.mustRun(t, args...)), &snap); err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	return snap
}

func TestRootCommandSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"serve", "layout", "export", "diff", "cache", "version", "completion"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing subcommand %q in %v", want, names)
		}
	}
	for _, flag := range []string{"config", "no-cache"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestInvalidConfigFails(t *testing.T) {
	e := newEnv(t, 0)
	writeFile(t, e.config, "[pagination]\npage_size = 0\n")

	_, err := e.run(t, "version")
	if !cerrors.Is(err, cerrors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestVersionCommand(t *testing.T) {
	e := newEnv(t, 0)
	out := e.mustRun(t, "version")
	for _, want := range []string{buildinfo.Version, "Commit"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	e := newEnv(t, 0)
	if out := e.mustRun(t, "completion", "bash"); !strings.Contains(out, "commitcanvas") {
		t.Errorf("bash completion does not mention commitcanvas")
	}
	if _, err := e.run(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for an unsupported shell")
	}
}

func TestLayoutJSON(t *testing.T) {
	e := newEnv(t, 3)
	snap := e.snapshot(t, "layout", e.repo, "--format", "json")

	if snap.Repo != e.repo {
		t.Errorf("Repo = %q, want %q", snap.Repo, e.repo)
	}
	if len(snap.Nodes) != 3 || len(snap.Edges) != 2 {
		t.Fatalf("got %d nodes, %d edges; want 3, 2", len(snap.Nodes), len(snap.Edges))
	}
	if snap.HasMore {
		t.Error("HasMore set for a complete history")
	}

	seen := map[graph.Position]bool{}
	for _, n := range snap.Nodes {
		if seen[n.Position] {
			t.Errorf("nodes share position %v", n.Position)
		}
		seen[n.Position] = true
		if n.Position.X != 0 {
			t.Errorf("%s at x=%v, linear history stays in one column", n.ID, n.Position.X)
		}
	}
}

func TestLayoutTableToFile(t *testing.T) {
	e := newEnv(t, 2)
	path := filepath.Join(e.out, "layout.txt")
	if out := e.mustRun(t, "layout", e.repo, "-o", path); out != "" {
		t.Errorf("stdout = %q, want empty when writing to a file", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{e.hashes[1][:7], "commit 0"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("table missing %q:\n%s", want, data)
		}
	}
}

func TestLayoutRejectsBadFlags(t *testing.T) {
	e := newEnv(t, 1)
	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"--format", "yaml"}},
		{"pages", []string{"--pages", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(t, append([]string{"layout", e.repo}, tt.args...)...)
			if !cerrors.Is(err, cerrors.ErrCodeInvalidInput) {
				t.Errorf("err = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestLayoutMissingRepository(t *testing.T) {
	e := newEnv(t, 0)
	_, err := e.run(t, "layout", filepath.Join(e.out, "nope"))
	if !cerrors.Is(err, cerrors.ErrCodeFetch) && !cerrors.Is(err, cerrors.ErrCodeNotFound) {
		t.Errorf("err = %v, want FETCH or NOT_FOUND", err)
	}
}

func TestLayoutHonorsSavedPositions(t *testing.T) {
	e := newEnv(t, 2)
	store, err := layoutcache.NewFileStore(e.cacheDir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	pinned := graph.Position{X: 640, Y: 480}
	if err := store.Save(context.Background(), e.repo, graph.Positions{e.hashes[0]: pinned}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap := e.snapshot(t, "layout", e.repo, "--format", "json")
	pos, ok := graph.PositionsOf(snap.Nodes).Lookup(e.hashes[0])
	if !ok || pos != pinned {
		t.Errorf("root at %v (found=%v), want %v", pos, ok, pinned)
	}

	// --no-cache ignores the saved layout.
	snap = e.snapshot(t, "--no-cache", "layout", e.repo, "--format", "json")
	if pos, _ := graph.PositionsOf(snap.Nodes).Lookup(e.hashes[0]); pos == pinned {
		t.Errorf("--no-cache still placed root at saved %v", pinned)
	}
}

func TestExportDOT(t *testing.T) {
	e := newEnv(t, 3)
	path := filepath.Join(e.out, "graph.dot")
	e.mustRun(t, "export", e.repo, "-o", path, "--detailed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "digraph G {") {
		t.Errorf("not a DOT digraph:\n%s", data)
	}
	if !strings.Contains(string(data), e.hashes[2][:7]) {
		t.Errorf("DOT missing head commit %s", e.hashes[2][:7])
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	e := newEnv(t, 1)
	_, err := e.run(t, "export", e.repo, "--format", "gif")
	if !cerrors.Is(err, cerrors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestDiffCommand(t *testing.T) {
	e := newEnv(t, 2)
	out := e.mustRun(t, "diff", e.repo, e.hashes[0], e.hashes[1])
	for _, want := range []string{"file1.txt", "+line 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("patch missing %q:\n%s", want, out)
		}
	}
}

func TestDiffCommandRejections(t *testing.T) {
	e := newEnv(t, 2)
	tests := []struct {
		name     string
		from, to string
		code     cerrors.Code
	}{
		{"working copy from", commit.WorkingCopyID, e.hashes[0], cerrors.ErrCodeNotDiffable},
		{"working copy to", e.hashes[0], commit.WorkingCopyID, cerrors.ErrCodeNotDiffable},
		{"same commit", e.hashes[0], e.hashes[0], cerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(t, "diff", e.repo, tt.from, tt.to)
			if !cerrors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestCachePath(t *testing.T) {
	e := newEnv(t, 0)
	if got := strings.TrimSpace(e.mustRun(t, "cache", "path")); got != e.cacheDir {
		t.Errorf("cache path = %q, want %q", got, e.cacheDir)
	}
	if got := strings.TrimSpace(e.mustRun(t, "--no-cache", "cache", "path")); got != layoutcache.BackendNone {
		t.Errorf("cache path with --no-cache = %q, want %q", got, layoutcache.BackendNone)
	}
}

func TestCacheClear(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	store, err := layoutcache.NewFileStore(e.cacheDir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	layout := graph.Positions{"abc1234": {X: 1, Y: 2}}
	for _, repo := range []string{e.repo, "/other/repo"} {
		if err := store.Save(ctx, repo, layout); err != nil {
			t.Fatalf("Save(%s): %v", repo, err)
		}
	}
	stored := func(repo string) int {
		t.Helper()
		got, err := store.Get(ctx, repo)
		if err != nil {
			t.Fatalf("Get(%s): %v", repo, err)
		}
		return len(got)
	}

	e.mustRun(t, "cache", "clear", e.repo)
	if n := stored(e.repo); n != 0 {
		t.Errorf("cleared repo still has %d positions", n)
	}
	if n := stored("/other/repo"); n != 1 {
		t.Errorf("other repo has %d positions, want 1", n)
	}

	e.mustRun(t, "cache", "clear")
	if n := stored("/other/repo"); n != 0 {
		t.Errorf("clear all left %d positions", n)
	}
}

func TestCacheClearBolt(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	path := filepath.Join(e.out, "layouts.db")
	writeFile(t, e.config, fmt.Sprintf("[cache]\nbackend = \"bolt\"\nbolt_path = %q\n", path))

	db, err := layoutcache.OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	for _, repo := range []string{"/a", "/b"} {
		if err := db.Save(ctx, repo, graph.Positions{"abc1234": {}}); err != nil {
			t.Fatalf("Save(%s): %v", repo, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e.mustRun(t, "cache", "clear")

	db, err = layoutcache.OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	defer db.Close()
	repos, err := db.Repos()
	if err != nil {
		t.Fatalf("Repos: %v", err)
	}
	if len(repos) != 0 {
		t.Errorf("repos after clear = %v, want none", repos)
	}
}

func TestCacheClearAllUnsupported(t *testing.T) {
	e := newEnv(t, 0)
	writeFile(t, e.config, "[cache]\nbackend = \"memory\"\n")
	_, err := e.run(t, "cache", "clear")
	if !cerrors.Is(err, cerrors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", formatSVG},
		{"out.svg", formatSVG},
		{"out.DOT", formatDOT},
		{"out.pdf", formatPDF},
		{"out.png", formatPNG},
		{"out.jpeg", formatSVG},
	}
	for _, tt := range tests {
		if got := formatFromPath(tt.path); got != tt.want {
			t.Errorf("formatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDefaultOutput(t *testing.T) {
	tests := []struct {
		repo, format string
		want         string
	}{
		{"/src/project", "svg", "project.svg"},
		{"/src/project/", "dot", "project.dot"},
		{"/", "png", "graph.png"},
	}
	for _, tt := range tests {
		if got := defaultOutput(tt.repo, tt.format); got != tt.want {
			t.Errorf("defaultOutput(%q, %q) = %q, want %q", tt.repo, tt.format, got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		msg  string
		max  int
		want string
	}{
		{"fix parser\n\nlong body", 50, "fix parser"},
		{"abcdefgh", 5, "abcd…"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := summary(tt.msg, tt.max); got != tt.want {
			t.Errorf("summary(%q, %d) = %q, want %q", tt.msg, tt.max, got, tt.want)
		}
	}
}
