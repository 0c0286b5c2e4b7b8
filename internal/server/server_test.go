package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
	"github.com/matzehuels/commitcanvas/pkg/layoutcache"
	"github.com/matzehuels/commitcanvas/pkg/pagination"
	"github.com/matzehuels/commitcanvas/pkg/session"
)

// fakeRepo serves c0 <- c1 <- c2, newest first.
type fakeRepo struct {
	mu  sync.Mutex
	err error
}

var history = []commit.Commit{
	{ID: "c2", Parents: []string{"c1"}},
	{ID: "c1", Parents: []string{"c0"}},
	{ID: "c0"},
}

func (r *fakeRepo) FetchCommits(_ context.Context, _ string, limit, skip int) (pagination.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return pagination.Page{}, r.err
	}
	if skip >= len(history) {
		return pagination.Page{}, nil
	}
	end := min(skip+limit, len(history))
	return pagination.Page{Commits: history[skip:end], HasMore: end < len(history)}, nil
}

func (r *fakeRepo) WorkingCopy(context.Context, string) (*commit.Commit, error) { return nil, nil }

func (r *fakeRepo) Show(_ context.Context, _, source, target string) (string, error) {
	return "diff " + source + " " + target, nil
}

func (r *fakeRepo) FetchAllRefs(context.Context, string) ([]commit.Ref, error) {
	return []commit.Ref{{Name: "HEAD", CommitID: "c2", Kind: commit.RefKindHead}}, nil
}

type fakeWatcher struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (w *fakeWatcher) Add(repo string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.added = append(w.added, repo)
	return nil
}

func (w *fakeWatcher) Remove(repo string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed = append(w.removed, repo)
}

type fixture struct {
	srv     *Server
	repo    *fakeRepo
	watcher *fakeWatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := &fakeRepo{}
	logger := log.New(io.Discard)
	mgr := session.NewManager(session.Config{
		Fetcher:        repo,
		Status:         repo,
		Differ:         repo,
		Refs:           repo,
		Store:          layoutcache.NewMemoryStore(),
		SubtreeDefault: true,
		WriteDelay:     10 * time.Millisecond,
		Logger:         logger,
	})
	w := &fakeWatcher{}
	srv, err := New(Options{Manager: mgr, Watcher: w, Logger: logger})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return &fixture{srv: srv, repo: repo, watcher: w}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) open(t *testing.T) tabResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/tabs", openTabRequest{Repo: "/repo"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open tab: status %d: %s", rec.Code, rec.Body)
	}
	var tab tabResponse
	decode(t, rec, &tab)
	return tab
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) errors.Code {
	t.Helper()
	var body errorBody
	decode(t, rec, &body)
	return body.Error.Code
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestOpenTab(t *testing.T) {
	f := newFixture(t)
	tab := f.open(t)

	if tab.ID == "" {
		t.Fatal("tab ID should be set")
	}
	if len(tab.Snapshot.Nodes) != 3 || len(tab.Snapshot.Edges) != 2 {
		t.Errorf("snapshot has %d nodes, %d edges; want 3, 2", len(tab.Snapshot.Nodes), len(tab.Snapshot.Edges))
	}
	if !tab.SubtreeDefault {
		t.Error("subtree default should come from the manager config")
	}
	if tab.Diff.State != "idle" {
		t.Errorf("diff state = %q, want idle", tab.Diff.State)
	}
	if len(f.watcher.added) != 1 || f.watcher.added[0] != "/repo" {
		t.Errorf("watched = %v, want [/repo]", f.watcher.added)
	}

	rec := f.do(t, http.MethodGet, "/api/tabs", nil)
	var tabs []tabSummary
	decode(t, rec, &tabs)
	if len(tabs) != 1 || tabs[0].ID != tab.ID || tabs[0].Repo != "/repo" {
		t.Errorf("tabs = %+v", tabs)
	}

	rec = f.do(t, http.MethodGet, "/api/tabs/"+tab.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get tab status = %d", rec.Code)
	}
}

func TestOpenTabErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tabs", openTabRequest{Repo: ""})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != errors.ErrCodeInvalidPath {
		t.Errorf("empty repo: %d %s", rec.Code, rec.Body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/tabs", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}

	f.repo.mu.Lock()
	f.repo.err = stderrors.New("boom")
	f.repo.mu.Unlock()
	rec = f.do(t, http.MethodPost, "/api/tabs", openTabRequest{Repo: "/repo"})
	if rec.Code != http.StatusBadGateway || errorCode(t, rec) != errors.ErrCodeFetch {
		t.Errorf("fetch failure: %d %s", rec.Code, rec.Body)
	}
	if ids := f.srv.mgr.IDs(); len(ids) != 0 {
		t.Errorf("failed open left tabs %v", ids)
	}
}

func TestUnknownTab(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/tabs/nope"},
		{http.MethodDelete, "/api/tabs/nope"},
		{http.MethodPost, "/api/tabs/nope/refresh"},
		{http.MethodGet, "/api/tabs/nope/refs"},
		{http.MethodGet, "/ws/tabs/nope"},
	} {
		rec := f.do(t, tc.method, tc.path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: status %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestTabCommands(t *testing.T) {
	f := newFixture(t)
	tab := f.open(t)
	base := "/api/tabs/" + tab.ID

	rec := f.do(t, http.MethodPut, base+"/mode", modeRequest{Subtree: false})
	var mode modeRequest
	decode(t, rec, &mode)
	if mode.Subtree {
		t.Error("mode should be single-node after PUT")
	}

	for _, path := range []string{"/refresh", "/load-more"} {
		if rec := f.do(t, http.MethodPost, base+path, nil); rec.Code != http.StatusOK {
			t.Errorf("POST %s: status %d: %s", path, rec.Code, rec.Body)
		}
	}

	rec = f.do(t, http.MethodGet, base+"/refs", nil)
	var refs []commit.Ref
	decode(t, rec, &refs)
	if len(refs) != 1 || refs[0].Name != "HEAD" {
		t.Errorf("refs = %+v", refs)
	}

	rec = f.do(t, http.MethodDelete, base+"/layout", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("clear layout status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("close status = %d", rec.Code)
	}
	if len(f.watcher.removed) != 1 {
		t.Errorf("unwatched = %v, want the repo", f.watcher.removed)
	}
	if rec := f.do(t, http.MethodGet, base, nil); rec.Code != http.StatusNotFound {
		t.Errorf("closed tab status = %d, want 404", rec.Code)
	}
}

func TestDiffEndpoints(t *testing.T) {
	f := newFixture(t)
	tab := f.open(t)
	base := "/api/tabs/" + tab.ID + "/diff"

	rec := f.do(t, http.MethodPost, base+"/start", diffStartRequest{Source: "c2"})
	var state diffMessage
	decode(t, rec, &state)
	if state.State != "armed" || state.Source != "c2" {
		t.Fatalf("after start: %+v", state)
	}

	rec = f.do(t, http.MethodPost, base+"/cursor", diffCursorRequest{X: 10, Y: 20})
	var moved map[string]bool
	decode(t, rec, &moved)
	if !moved["moved"] {
		t.Error("cursor should move while armed")
	}

	rec = f.do(t, http.MethodPost, base+"/select", diffSelectRequest{Target: "c2"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("self diff status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodPost, base+"/select", diffSelectRequest{Target: "c0"})
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d: %s", rec.Code, rec.Body)
	}
	var sel struct{ Source, Target, Patch string }
	decode(t, rec, &sel)
	if sel.Patch != "diff c2 c0" {
		t.Errorf("patch = %q", sel.Patch)
	}

	rec = f.do(t, http.MethodPost, base+"/start", diffStartRequest{Source: commit.WorkingCopyID})
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("working copy source status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, base+"/cancel", nil)
	decode(t, rec, &state)
	if state.State != "idle" {
		t.Errorf("after cancel: %+v", state)
	}
}

func TestWebSocketDrag(t *testing.T) {
	f := newFixture(t)
	tab := f.open(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/tabs/" + tab.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	first := readMessage(t, conn)
	second := readMessage(t, conn)
	if first.Type != msgNodes || second.Type != msgEdges {
		t.Fatalf("initial frames = %s, %s; want nodes, edges", first.Type, second.Type)
	}

	start := graph.PositionsOf(first.Nodes)
	c1 := start["c1"]
	send(t, conn, clientMessage{Type: clientDragStart, Node: "c1"})
	send(t, conn, clientMessage{Type: clientDragMove, X: c1.X + 50, Y: c1.Y + 10})

	var moved graph.Positions
	for moved == nil {
		m := readMessage(t, conn)
		if m.Type == msgPositions {
			moved = m.Positions
		}
	}
	want := start["c2"].Add(graph.Position{X: 50, Y: 10})
	if moved["c2"] != want {
		t.Errorf("c2 = %v, want %v (moved with its ancestor)", moved["c2"], want)
	}
	if _, ok := moved["c0"]; ok {
		t.Error("ancestor c0 should not move")
	}

	send(t, conn, clientMessage{Type: "bogus"})
	for {
		m := readMessage(t, conn)
		if m.Type == msgNotification {
			if m.Notification.Code != errors.ErrCodeInvalidInput {
				t.Errorf("notification code = %q", m.Notification.Code)
			}
			break
		}
	}
	send(t, conn, clientMessage{Type: clientDragEnd})

	if rec := f.do(t, http.MethodDelete, "/api/tabs/"+tab.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", rec.Code)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("expected normal close, got %v", err)
			}
			break
		}
	}
}

func dialTab(t *testing.T, ts *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/tabs/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWebSocketDragOnlyReachesDragger(t *testing.T) {
	f := newFixture(t)
	tab := f.open(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	dragger := dialTab(t, ts, tab.ID)
	watcher := dialTab(t, ts, tab.ID)
	var start graph.Positions
	for _, conn := range []*websocket.Conn{dragger, watcher} {
		nodes := readMessage(t, conn)
		if edges := readMessage(t, conn); nodes.Type != msgNodes || edges.Type != msgEdges {
			t.Fatalf("initial frames = %s, %s", nodes.Type, edges.Type)
		}
		start = graph.PositionsOf(nodes.Nodes)
	}

	c1 := start["c1"]
	send(t, dragger, clientMessage{Type: clientDragStart, Node: "c1"})
	for i := 1; i <= 5; i++ {
		send(t, dragger, clientMessage{Type: clientDragMove, X: c1.X + float64(10*i), Y: c1.Y})
		if m := readMessage(t, dragger); m.Type != msgPositions {
			t.Fatalf("tick %d: dragger got %s, want positions", i, m.Type)
		}
	}
	send(t, dragger, clientMessage{Type: clientDragEnd})

	// The first frame the watcher sees after its initial picture is the
	// committed drag.
	m := readMessage(t, watcher)
	if m.Type != msgNodes {
		t.Fatalf("watcher got %s during the drag, want nodes at drag end", m.Type)
	}
	want := c1.Add(graph.Position{X: 50})
	if got := graph.PositionsOf(m.Nodes)["c1"]; got != want {
		t.Errorf("committed c1 = %v, want %v", got, want)
	}
	if m := readMessage(t, dragger); m.Type != msgNodes {
		t.Errorf("dragger got %s at drag end, want nodes", m.Type)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	var m message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func send(t *testing.T, conn *websocket.Conn, m clientMessage) {
	t.Helper()
	if err := conn.WriteJSON(m); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeInvalidInput, http.StatusBadRequest},
		{errors.ErrCodeInvalidPath, http.StatusBadRequest},
		{errors.ErrCodeNotFound, http.StatusNotFound},
		{errors.ErrCodeNotDiffable, http.StatusUnprocessableEntity},
		{errors.ErrCodeBusy, http.StatusConflict},
		{errors.ErrCodeFetch, http.StatusBadGateway},
		{errors.ErrCodePersistence, http.StatusServiceUnavailable},
		{errors.ErrCodeLayout, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestSameOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://localhost:7420/ws/tabs/x", nil)
	if !sameOrigin(req) {
		t.Error("requests without Origin should pass")
	}
	req.Header.Set("Origin", "http://localhost:7420")
	if !sameOrigin(req) {
		t.Error("same host should pass")
	}
	req.Header.Set("Origin", "http://evil.example")
	if sameOrigin(req) {
		t.Error("foreign origin should be rejected")
	}
}
