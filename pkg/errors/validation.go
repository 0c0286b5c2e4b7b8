package errors

import (
	"strings"
	"unicode"
)

const (
	maxRepoPathLength = 4096
	minCommitIDLength = 4
	maxCommitIDLength = 64
)

// workingCopyID mirrors commit.WorkingCopyID. It is accepted by
// ValidateCommitID so callers can reject it with a precise NOT_DIFFABLE
// error afterwards.
const workingCopyID = "working-copy"

// ValidateRepoPath checks a repository path received from a client.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidateRepoPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidPath, "repository path cannot be empty")
	}
	if len(path) > maxRepoPathLength {
		return New(ErrCodeInvalidPath, "repository path too long (max %d characters)", maxRepoPathLength)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "repository path contains invalid characters")
		}
	}
	return nil
}

// ValidateCommitID checks that id is either an abbreviated or full hex
// object name, or the working-copy sentinel.
func ValidateCommitID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "commit ID cannot be empty")
	}
	if id == workingCopyID {
		return nil
	}
	if len(id) < minCommitIDLength || len(id) > maxCommitIDLength {
		return New(ErrCodeInvalidInput, "invalid commit ID length: %q", id)
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return New(ErrCodeInvalidInput, "commit ID must be hexadecimal: %q", id)
		}
	}
	return nil
}
