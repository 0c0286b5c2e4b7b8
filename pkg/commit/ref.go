package commit

// RefKind distinguishes the kinds of references annotated onto commits.
type RefKind uint8

const (
	RefKindHead RefKind = iota
	RefKindBranch
	RefKindRemoteBranch
	RefKindTag
)

func (k RefKind) String() string {
	switch k {
	case RefKindHead:
		return "head"
	case RefKindBranch:
		return "branch"
	case RefKindRemoteBranch:
		return "remote"
	case RefKindTag:
		return "tag"
	}
	return "unknown"
}

// Ref is a named pointer to a commit: HEAD, a branch, a remote branch or a tag.
type Ref struct {
	Name     string  `json:"name"`
	CommitID string  `json:"commit_id"`
	Kind     RefKind `json:"kind"`
}

// RefNames groups ref names by the commit they point to, preserving the
// input order within each commit.
func RefNames(refs []Ref) map[string][]string {
	m := make(map[string][]string)
	for _, r := range refs {
		m[r.CommitID] = append(m[r.CommitID], r.Name)
	}
	return m
}
