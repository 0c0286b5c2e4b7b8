package gitsource

import (
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"slices"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/matzehuels/commitcanvas/pkg/commit"
)

// FetchAllRefs lists HEAD, local branches, remote branches and tags, in
// that order and sorted by name within each kind. Annotated tags resolve to
// the commit they tag.
func (s *Source) FetchAllRefs(ctx context.Context, repo string) ([]commit.Ref, error) {
	r, err := s.Open(ctx, repo)
	if err != nil {
		return nil, err
	}

	var refs []commit.Ref
	head, err := r.Head()
	switch {
	case err == nil:
		refs = append(refs, commit.Ref{Name: "HEAD", CommitID: head.Hash().String(), Kind: commit.RefKindHead})
	case !stderrors.Is(err, plumbing.ErrReferenceNotFound):
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := r.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	var rest []commit.Ref
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		switch {
		case name.IsBranch():
			rest = append(rest, commit.Ref{Name: name.Short(), CommitID: ref.Hash().String(), Kind: commit.RefKindBranch})
		case name.IsRemote():
			rest = append(rest, commit.Ref{Name: name.Short(), CommitID: ref.Hash().String(), Kind: commit.RefKindRemoteBranch})
		case name.IsTag():
			rest = append(rest, commit.Ref{Name: name.Short(), CommitID: tagTarget(r, ref.Hash()).String(), Kind: commit.RefKindTag})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}

	slices.SortFunc(rest, func(a, b commit.Ref) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return append(refs, rest...), nil
}

// tagTarget peels an annotated tag to its commit. Lightweight tags already
// point at the commit.
func tagTarget(r *git.Repository, h plumbing.Hash) plumbing.Hash {
	tag, err := r.TagObject(h)
	if err != nil {
		return h
	}
	c, err := tag.Commit()
	if err != nil {
		return tag.Target
	}
	return c.Hash
}
