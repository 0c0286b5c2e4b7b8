package layoutcache

import (
	"context"
	"sync"

	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// MemoryStore keeps layouts in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	layouts map[string]graph.Positions
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{layouts: make(map[string]graph.Positions)}
}

// Get returns a copy of the layout for repo.
func (s *MemoryStore) Get(ctx context.Context, repo string) (graph.Positions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layouts[NormalizeRepoPath(repo)].Clone(), nil
}

// Save stores a copy of positions.
func (s *MemoryStore) Save(ctx context.Context, repo string, positions graph.Positions) error {
	clean := make(graph.Positions, len(positions))
	for id, p := range positions {
		if p.IsFinite() {
			clean[id] = p
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts[NormalizeRepoPath(repo)] = clean
	return nil
}

// Delete removes the layout for repo.
func (s *MemoryStore) Delete(ctx context.Context, repo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layouts, NormalizeRepoPath(repo))
	return nil
}

// Close does nothing.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
