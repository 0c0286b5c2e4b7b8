// Package server exposes graph sessions over HTTP and WebSocket.
//
// Each open tab is a [session.GraphSession] held by a [session.Manager].
// Commands arrive as JSON requests under /api/tabs; drawable state is pushed
// to WebSocket clients of /ws/tabs/{id}, which act as the rendering surface
// of the tab.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/session"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// RepoWatcher is notified when tabs open and close so it can refresh them
// on disk changes.
type RepoWatcher interface {
	Add(repo string) error
	Remove(repo string)
}

// Options configures a Server. Manager is required.
type Options struct {
	Manager *session.Manager
	Watcher RepoWatcher
	Logger  *log.Logger
}

// Server routes API calls to tabs and fans their updates out to WebSocket
// clients.
type Server struct {
	mgr     *session.Manager
	watcher RepoWatcher
	log     *log.Logger
	router  chi.Router

	mu   sync.Mutex
	hubs map[string]*hub // tab ID -> hub
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Manager == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "a session manager is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		mgr:     opts.Manager,
		watcher: opts.Watcher,
		log:     logger,
		hubs:    make(map[string]*hub),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/tabs", func(r chi.Router) {
		r.Get("/", s.handleListTabs)
		r.Post("/", s.handleOpenTab)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTab)
			r.Delete("/", s.handleCloseTab)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/load-more", s.handleLoadMore)
			r.Put("/mode", s.handleSetMode)
			r.Delete("/layout", s.handleClearLayout)
			r.Get("/refs", s.handleRefs)
			r.Route("/diff", func(r chi.Router) {
				r.Post("/start", s.handleDiffStart)
				r.Post("/cursor", s.handleDiffCursor)
				r.Post("/select", s.handleDiffSelect)
				r.Post("/cancel", s.handleDiffCancel)
			})
		})
	})

	r.Get("/ws/tabs/{id}", s.handleWebSocket)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		s.closeHubs()
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.closeHubs()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close closes every tab and disconnects all WebSocket clients.
func (s *Server) Close() error {
	s.closeHubs()
	return s.mgr.CloseAll()
}

func (s *Server) closeHubs() {
	s.mu.Lock()
	hubs := s.hubs
	s.hubs = make(map[string]*hub)
	s.mu.Unlock()
	for _, h := range hubs {
		h.close()
	}
}

func (s *Server) hub(id string) (*hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hubs[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "tab %s not found", id)
	}
	return h, nil
}

// openTab creates a tab for repo wired to a fresh hub.
func (s *Server) openTab(ctx context.Context, repo string) (string, *session.GraphSession, error) {
	if err := errors.ValidateRepoPath(repo); err != nil {
		return "", nil, err
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", repo)
	}

	h := newHub(s.log)
	id, sess, err := s.mgr.Open(ctx, abs, h, h)
	if err != nil {
		return "", nil, err
	}
	s.mu.Lock()
	s.hubs[id] = h
	s.mu.Unlock()

	if s.watcher != nil {
		if err := s.watcher.Add(abs); err != nil {
			s.log.Warn("not watching repository", "repo", abs, "err", err)
		}
	}
	s.log.Info("tab opened", "tab", id, "repo", abs)
	return id, sess, nil
}

// closeTab closes a tab, its hub and, if it was the last tab on the
// repository, the repository watch.
func (s *Server) closeTab(id string) error {
	sess, err := s.mgr.Get(id)
	if err != nil {
		return err
	}
	repo := sess.Repo()
	if err := s.mgr.Close(id); err != nil {
		return err
	}

	s.mu.Lock()
	h := s.hubs[id]
	delete(s.hubs, id)
	s.mu.Unlock()
	if h != nil {
		h.close()
	}

	if s.watcher != nil && len(s.mgr.ForRepo(repo)) == 0 {
		s.watcher.Remove(repo)
	}
	s.log.Info("tab closed", "tab", id, "repo", repo)
	return nil
}
