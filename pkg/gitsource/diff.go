package gitsource

import (
	"context"
	"fmt"

	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/errors"
)

// Diff returns the unified patch turning from into to.
func (s *Source) Diff(ctx context.Context, repo, from, to string) (string, error) {
	if from == commit.WorkingCopyID || to == commit.WorkingCopyID {
		return "", errors.New(errors.ErrCodeNotDiffable, "uncommitted changes cannot be diffed")
	}
	r, err := s.Open(ctx, repo)
	if err != nil {
		return "", err
	}
	fromHash, err := resolve(r, from)
	if err != nil {
		return "", err
	}
	toHash, err := resolve(r, to)
	if err != nil {
		return "", err
	}
	a, err := r.CommitObject(fromHash)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNotFound, err, "commit %s", from)
	}
	b, err := r.CommitObject(toHash)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNotFound, err, "commit %s", to)
	}
	patch, err := a.PatchContext(ctx, b)
	if err != nil {
		return "", fmt.Errorf("diff %s..%s: %w", from, to, err)
	}
	return patch.String(), nil
}

// Show implements diffpointer.Differ.
func (s *Source) Show(ctx context.Context, repo, source, target string) (string, error) {
	return s.Diff(ctx, repo, source, target)
}
