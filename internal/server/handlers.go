package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/commitcanvas/pkg/buildinfo"
	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/diffpointer"
	"github.com/matzehuels/commitcanvas/pkg/graph"
	"github.com/matzehuels/commitcanvas/pkg/session"
)

type openTabRequest struct {
	Repo string `json:"repo"`
}

type tabResponse struct {
	ID             string         `json:"id"`
	Snapshot       graph.Snapshot `json:"snapshot"`
	SubtreeDefault bool           `json:"subtree_default"`
	Diff           diffMessage    `json:"diff"`
}

type tabSummary struct {
	ID   string `json:"id"`
	Repo string `json:"repo"`
}

type modeRequest struct {
	Subtree bool `json:"subtree"`
}

type diffStartRequest struct {
	Source string `json:"source"`
}

type diffCursorRequest struct {
	X        float64               `json:"x"`
	Y        float64               `json:"y"`
	Viewport *diffpointer.Viewport `json:"viewport,omitempty"`
}

type diffSelectRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": buildinfo.Get().Version,
		"tabs":    len(s.mgr.IDs()),
	})
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	out := []tabSummary{}
	for _, id := range s.mgr.IDs() {
		sess, err := s.mgr.Get(id)
		if err != nil {
			continue
		}
		out = append(out, tabSummary{ID: id, Repo: sess.Repo()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOpenTab(w http.ResponseWriter, r *http.Request) {
	var req openTabRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, sess, err := s.openTab(r.Context(), req.Repo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, describe(id, sess))
}

func (s *Server) handleGetTab(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, describe(id, sess))
}

func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	if err := s.closeTab(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	if err := sess.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(id, sess))
}

func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	if err := sess.LoadMore(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(id, sess))
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess.SetSubtreeDefault(req.Subtree)
	writeJSON(w, http.StatusOK, modeRequest{Subtree: sess.SubtreeDefault()})
}

func (s *Server) handleClearLayout(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	if err := sess.ClearLayout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(id, sess))
}

func (s *Server) handleRefs(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	refs, err := sess.Refs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if refs == nil {
		refs = []commit.Ref{}
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleDiffStart(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	var req diffStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := sess.StartDiff(req.Source); err != nil {
		writeError(w, err)
		return
	}
	s.pushDiffState(id, sess)
	writeJSON(w, http.StatusOK, diffState(sess))
}

func (s *Server) handleDiffCursor(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	var req diffCursorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"moved": moveCursor(sess, req)})
}

func (s *Server) handleDiffSelect(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	var req diffSelectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sel, err := sess.SelectDiffTarget(r.Context(), req.Target)
	if err != nil {
		writeError(w, err)
		return
	}
	if h, err := s.hub(id); err == nil {
		h.broadcast(diffResultMessage(sel))
	}
	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) handleDiffCancel(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.tab(w, r)
	if !ok {
		return
	}
	sess.CancelDiff()
	s.pushDiffState(id, sess)
	writeJSON(w, http.StatusOK, diffState(sess))
}

// tab resolves the {id} URL parameter, writing a 404 when it is unknown.
func (s *Server) tab(w http.ResponseWriter, r *http.Request) (string, *session.GraphSession, bool) {
	id := chi.URLParam(r, "id")
	sess, err := s.mgr.Get(id)
	if err != nil {
		writeError(w, err)
		return "", nil, false
	}
	return id, sess, true
}

func (s *Server) pushDiffState(id string, sess *session.GraphSession) {
	h, err := s.hub(id)
	if err != nil {
		return
	}
	state, source := sess.DiffState()
	h.broadcast(diffStateMessage(state, source))
}

func moveCursor(sess *session.GraphSession, req diffCursorRequest) bool {
	if req.Viewport != nil {
		return sess.UpdateDiffCursorScreen(req.X, req.Y, *req.Viewport)
	}
	return sess.UpdateDiffCursor(req.X, req.Y)
}

func diffState(sess *session.GraphSession) diffMessage {
	state, source := sess.DiffState()
	return diffMessage{State: state.String(), Source: source}
}

func describe(id string, sess *session.GraphSession) tabResponse {
	return tabResponse{
		ID:             id,
		Snapshot:       sess.Snapshot(),
		SubtreeDefault: sess.SubtreeDefault(),
		Diff:           diffState(sess),
	}
}
