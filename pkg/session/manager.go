package session

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/matzehuels/commitcanvas/pkg/errors"
)

// Manager is a registry of independent tabs.
type Manager struct {
	base Config

	mu   sync.RWMutex
	tabs map[string]*GraphSession
}

// NewManager creates a Manager. base supplies the collaborators and options
// shared by every tab; Repo, Surface and Notifier are set per tab.
func NewManager(base Config) *Manager {
	return &Manager{base: base, tabs: make(map[string]*GraphSession)}
}

// Open creates a tab for repo, loads its first page and registers it. If the
// first load fails the tab is discarded.
func (m *Manager) Open(ctx context.Context, repo string, surface Surface, notifier Notifier) (string, *GraphSession, error) {
	cfg := m.base
	cfg.Repo = repo
	cfg.Surface = surface
	cfg.Notifier = notifier

	s, err := New(cfg)
	if err != nil {
		return "", nil, err
	}
	if err := s.Open(ctx); err != nil {
		s.Close()
		return "", nil, err
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.tabs[id] = s
	m.mu.Unlock()
	return id, s, nil
}

// Get returns the tab with the given ID.
func (m *Manager) Get(id string) (*GraphSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.tabs[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "tab %s not found", id)
	}
	return s, nil
}

// IDs returns the open tab IDs, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedIDsLocked()
}

// Close closes and removes one tab.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.tabs[id]
	delete(m.tabs, id)
	m.mu.Unlock()
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "tab %s not found", id)
	}
	return s.Close()
}

// CloseAll closes every tab and returns the first error.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	tabs := m.tabs
	m.tabs = make(map[string]*GraphSession)
	m.mu.Unlock()

	var first error
	for _, s := range tabs {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ForRepo returns the open tabs showing repo.
func (m *Manager) ForRepo(repo string) []*GraphSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*GraphSession
	for _, id := range m.sortedIDsLocked() {
		if s := m.tabs[id]; s.Repo() == repo {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) sortedIDsLocked() []string {
	ids := make([]string, 0, len(m.tabs))
	for id := range m.tabs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
