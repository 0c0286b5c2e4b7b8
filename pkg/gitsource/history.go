package gitsource

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/pagination"
)

const unknownAuthor = "Unknown"

// FetchCommits returns up to limit commits reachable from HEAD, newest
// first by committer time, after skipping skip of them. Each commit is
// annotated with the names of the refs pointing at it. An unborn HEAD
// yields an empty page.
func (s *Source) FetchCommits(ctx context.Context, repo string, limit, skip int) (pagination.Page, error) {
	if limit <= 0 {
		return pagination.Page{}, errors.New(errors.ErrCodeInvalidInput, "limit must be positive, got %d", limit)
	}
	if skip < 0 {
		return pagination.Page{}, errors.New(errors.ErrCodeInvalidInput, "skip must not be negative, got %d", skip)
	}
	r, err := s.Open(ctx, repo)
	if err != nil {
		return pagination.Page{}, err
	}

	head, err := r.Head()
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return pagination.Page{}, nil
	}
	if err != nil {
		return pagination.Page{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	refs, err := s.FetchAllRefs(ctx, repo)
	if err != nil {
		return pagination.Page{}, err
	}
	names := commit.RefNames(refs)

	iter, err := r.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return pagination.Page{}, fmt.Errorf("walk history: %w", err)
	}
	defer iter.Close()

	var page pagination.Page
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return pagination.Page{}, err
		}
		c, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return pagination.Page{}, fmt.Errorf("walk history: %w", err)
		}
		if i < skip {
			continue
		}
		if len(page.Commits) == limit {
			page.HasMore = true
			break
		}
		page.Commits = append(page.Commits, toCommit(c, names))
	}

	s.log.Debug("fetched commits", "repo", repo, "skip", skip, "count", len(page.Commits), "has_more", page.HasMore)
	return page, nil
}

func toCommit(c *object.Commit, names map[string][]string) commit.Commit {
	id := c.Hash.String()
	author := c.Author.Name
	if author == "" {
		author = unknownAuthor
	}
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return commit.Commit{
		ID:        id,
		Message:   c.Message,
		Author:    author,
		Timestamp: c.Committer.When.Unix(),
		Parents:   parents,
		Refs:      names[id],
	}
}
