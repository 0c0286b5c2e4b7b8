// Package gitsource reads commit history, refs, working-tree status and
// diffs from git repositories using go-git.
//
// A [Source] implements the collaborator interfaces the session depends on:
// [pagination.Fetcher], [pagination.StatusFetcher] and [diffpointer.Differ].
// Repositories are opened once per path and reused for the lifetime of the
// Source.
//
// History is walked from HEAD in committer-time order, newest first:
//
//	src := gitsource.New(gitsource.Options{Logger: logger})
//	page, err := src.FetchCommits(ctx, "/path/to/repo", 100, 0)
//
// Tests inject an [Opener] that returns in-memory repositories.
package gitsource
