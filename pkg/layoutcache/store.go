package layoutcache

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
	"github.com/matzehuels/commitcanvas/pkg/observability"
)

// Store reads and writes per-repository layouts.
type Store interface {
	// Get returns the stored layout for repo, or an empty map if none.
	Get(ctx context.Context, repo string) (graph.Positions, error)

	// Save replaces the stored layout for repo.
	Save(ctx context.Context, repo string, positions graph.Positions) error

	// Delete removes the stored layout for repo. Deleting a missing layout
	// is not an error.
	Delete(ctx context.Context, repo string) error

	// Close releases backend resources.
	Close() error
}

// NormalizeRepoPath strips trailing path separators so "/src/app/" and
// "/src/app" share one layout. A bare root is returned unchanged.
func NormalizeRepoPath(repo string) string {
	trimmed := strings.TrimRight(repo, `/\`)
	if trimmed == "" {
		return repo
	}
	return trimmed
}

// Merge overlays positions onto the stored layout for repo and saves the
// result. Entries for commits not in positions are kept.
func Merge(ctx context.Context, s Store, repo string, positions graph.Positions) error {
	stored, err := s.Get(ctx, repo)
	if err != nil {
		return err
	}
	merged := stored.Clone()
	for id, p := range positions {
		if p.IsFinite() {
			merged[id] = p
		}
	}
	return s.Save(ctx, repo, merged)
}

// encode serializes positions in the canonical layout format, dropping
// non-finite entries.
func encode(positions graph.Positions) ([]byte, error) {
	clean := make(graph.Positions, len(positions))
	for id, p := range positions {
		if p.IsFinite() {
			clean[id] = p
		}
	}
	return json.Marshal(clean)
}

// decode parses the canonical layout format. Empty input is an empty layout.
func decode(data []byte) (graph.Positions, error) {
	out := graph.Positions{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// Instrumentation
// =============================================================================

// Instrument wraps s so every call reports to the registered cache hooks and
// backend errors carry the PERSISTENCE_ERROR code.
func Instrument(s Store, backend string) Store {
	if _, ok := s.(*instrumented); ok {
		return s
	}
	return &instrumented{inner: s, backend: backend}
}

type instrumented struct {
	inner   Store
	backend string
}

func (s *instrumented) Get(ctx context.Context, repo string) (graph.Positions, error) {
	repo = NormalizeRepoPath(repo)
	positions, err := s.inner.Get(ctx, repo)
	if err != nil {
		observability.Cache().OnCacheError(ctx, s.backend, err)
		return nil, s.wrap(err, "load layout for %s", repo)
	}
	if len(positions) == 0 {
		observability.Cache().OnCacheMiss(ctx, s.backend)
	} else {
		observability.Cache().OnCacheHit(ctx, s.backend, len(positions))
	}
	return positions, nil
}

func (s *instrumented) Save(ctx context.Context, repo string, positions graph.Positions) error {
	repo = NormalizeRepoPath(repo)
	if err := s.inner.Save(ctx, repo, positions); err != nil {
		observability.Cache().OnCacheError(ctx, s.backend, err)
		return s.wrap(err, "save layout for %s", repo)
	}
	observability.Cache().OnCacheSave(ctx, s.backend, len(positions))
	return nil
}

func (s *instrumented) Delete(ctx context.Context, repo string) error {
	repo = NormalizeRepoPath(repo)
	if err := s.inner.Delete(ctx, repo); err != nil {
		observability.Cache().OnCacheError(ctx, s.backend, err)
		return s.wrap(err, "delete layout for %s", repo)
	}
	return nil
}

func (s *instrumented) Close() error { return s.inner.Close() }

// wrap tags err with PERSISTENCE_ERROR while keeping it retryable.
func (s *instrumented) wrap(err error, format string, args ...any) error {
	if errors.GetCode(err) != "" {
		return err
	}
	wrapped := errors.Wrap(errors.ErrCodePersistence, err, format, args...)
	if IsRetryable(err) {
		return Retryable(wrapped)
	}
	return wrapped
}
