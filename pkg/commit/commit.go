// Package commit defines the commit and ref records exchanged between the git
// collaborators and the layout core.
//
// Commits are plain values. A loaded window is an ordered slice of them,
// newest first as the history walk yields them. The synthetic working-copy
// commit (see [WorkingCopyID]) stands in for uncommitted local changes; it is
// never a real repository object and must not be counted toward pagination
// offsets or offered as a diff endpoint.
package commit

import (
	"encoding/json"
	"fmt"
	"slices"
)

// WorkingCopyID identifies the synthetic commit representing uncommitted
// changes in the working directory.
const WorkingCopyID = "working-copy"

// UncommittedState describes which kind of local changes the working-copy
// commit represents.
type UncommittedState int

const (
	// None marks a regular commit.
	None UncommittedState = iota
	// Staged means only index changes are present.
	Staged
	// Unstaged means only worktree changes are present.
	Unstaged
	// Mixed means both staged and unstaged changes are present.
	Mixed
)

var stateNames = map[UncommittedState]string{
	None:     "",
	Staged:   "staged",
	Unstaged: "unstaged",
	Mixed:    "mixed",
}

// String returns the wire name of the state ("" for None).
func (s UncommittedState) String() string { return stateNames[s] }

// ParseUncommittedState parses a wire name back into a state.
func ParseUncommittedState(s string) (UncommittedState, error) {
	for k, v := range stateNames {
		if v == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown uncommitted state %q", s)
}

// MarshalJSON encodes the state as its wire name.
func (s UncommittedState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire name.
func (s *UncommittedState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, err := ParseUncommittedState(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Commit is a single history entry.
type Commit struct {
	ID          string           `json:"id"`
	Message     string           `json:"message"`
	Author      string           `json:"author"`
	Timestamp   int64            `json:"timestamp"`
	Parents     []string         `json:"parents"`
	Refs        []string         `json:"refs,omitempty"`
	Uncommitted UncommittedState `json:"uncommitted_state,omitempty"`
}

// IsSynthetic reports whether c is the working-copy placeholder.
func (c Commit) IsSynthetic() bool { return c.ID == WorkingCopyID }

// FirstParent returns the first parent ID, or "" for root commits.
func (c Commit) FirstParent() string {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

// Clone returns a deep copy of c.
func (c Commit) Clone() Commit {
	c.Parents = slices.Clone(c.Parents)
	c.Refs = slices.Clone(c.Refs)
	return c
}

// NewWorkingCopy builds the synthetic working-copy commit on top of head.
func NewWorkingCopy(head string, state UncommittedState, timestamp int64) Commit {
	c := Commit{
		ID:          WorkingCopyID,
		Message:     "Uncommitted changes",
		Timestamp:   timestamp,
		Uncommitted: state,
	}
	if head != "" {
		c.Parents = []string{head}
	}
	return c
}

// CountReal returns the number of non-synthetic commits in commits.
func CountReal(commits []Commit) int {
	n := 0
	for _, c := range commits {
		if !c.IsSynthetic() {
			n++
		}
	}
	return n
}

// Reversed returns a copy of commits in reverse order. Windows are held
// newest-first; layout and reconciliation consume them oldest-first.
func Reversed(commits []Commit) []Commit {
	out := slices.Clone(commits)
	slices.Reverse(out)
	return out
}

// Index maps commit IDs to their commits.
func Index(commits []Commit) map[string]Commit {
	m := make(map[string]Commit, len(commits))
	for _, c := range commits {
		m[c.ID] = c
	}
	return m
}
