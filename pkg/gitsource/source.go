package gitsource

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/matzehuels/commitcanvas/pkg/errors"
)

// Opener opens the repository at path.
type Opener func(path string) (*git.Repository, error)

// PlainOpener opens an on-disk repository, searching parent directories for
// the .git directory.
func PlainOpener(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
}

// Options configures a Source.
type Options struct {
	// Opener defaults to PlainOpener.
	Opener Opener
	Logger *log.Logger
}

// Source serves commits, refs, status and diffs for any number of
// repositories. It is safe for concurrent use.
type Source struct {
	open Opener
	log  *log.Logger

	mu    sync.Mutex
	repos map[string]*git.Repository
}

// New creates a Source.
func New(opts Options) *Source {
	if opts.Opener == nil {
		opts.Opener = PlainOpener
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Source{
		open:  opts.Opener,
		log:   logger,
		repos: make(map[string]*git.Repository),
	}
}

// Open returns the repository at path, opening it on first use.
func (s *Source) Open(ctx context.Context, path string) (*git.Repository, error) {
	if err := errors.ValidateRepoPath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.repos[key]; ok {
		return r, nil
	}
	r, err := s.open(key)
	if err == git.ErrRepositoryNotExists {
		return nil, errors.New(errors.ErrCodeNotFound, "%s is not a git repository", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "open %s", path)
	}
	s.log.Debug("opened repository", "repo", key)
	s.repos[key] = r
	return r, nil
}

// Forget drops the cached handle for path so the next call reopens it.
func (s *Source) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.repos, filepath.Clean(path))
}

// resolve turns a full or abbreviated commit ID into a hash.
func resolve(r *git.Repository, id string) (plumbing.Hash, error) {
	if err := errors.ValidateCommitID(id); err != nil {
		return plumbing.ZeroHash, err
	}
	h, err := r.ResolveRevision(plumbing.Revision(id))
	if err != nil {
		return plumbing.ZeroHash, errors.Wrap(errors.ErrCodeNotFound, err, "commit %s", id)
	}
	return *h, nil
}
