package gitsource

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/matzehuels/commitcanvas/pkg/commit"
)

// WorkingCopy returns the synthetic working-copy commit on top of HEAD, or
// nil when the worktree is clean or the repository is bare. Untracked files
// count as unstaged changes.
func (s *Source) WorkingCopy(ctx context.Context, repo string) (*commit.Commit, error) {
	r, err := s.Open(ctx, repo)
	if err != nil {
		return nil, err
	}
	wt, err := r.Worktree()
	if err == git.ErrIsBareRepository {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	state := classify(st)
	if state == commit.None {
		return nil, nil
	}

	head := ""
	ref, err := r.Head()
	switch {
	case err == nil:
		head = ref.Hash().String()
	case !stderrors.Is(err, plumbing.ErrReferenceNotFound):
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	wc := commit.NewWorkingCopy(head, state, time.Now().Unix())
	return &wc, nil
}

func classify(st git.Status) commit.UncommittedState {
	var staged, unstaged bool
	for _, fs := range st {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			staged = true
		}
		if fs.Worktree != git.Unmodified {
			unstaged = true
		}
	}
	switch {
	case staged && unstaged:
		return commit.Mixed
	case staged:
		return commit.Staged
	case unstaged:
		return commit.Unstaged
	}
	return commit.None
}
