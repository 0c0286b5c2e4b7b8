package layoutcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// FileStore keeps one JSON file per repository.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// Get reads the layout for repo. A corrupt file is removed and treated as
// a miss.
func (s *FileStore) Get(ctx context.Context, repo string) (graph.Positions, error) {
	path := s.path(repo)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return graph.Positions{}, nil
	}
	if err != nil {
		return nil, err
	}

	positions, err := decode(data)
	if err != nil {
		_ = os.Remove(path)
		return graph.Positions{}, nil
	}
	return positions, nil
}

// Save writes the layout atomically via a temp file and rename.
func (s *FileStore) Save(ctx context.Context, repo string, positions graph.Positions) error {
	data, err := encode(positions)
	if err != nil {
		return err
	}

	path := s.path(repo)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".layout-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes the layout file.
func (s *FileStore) Delete(ctx context.Context, repo string) error {
	err := os.Remove(s.path(repo))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear removes every stored layout.
func (s *FileStore) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Close does nothing for file store.
func (s *FileStore) Close() error {
	return nil
}

// path maps a repository to dir/ab/cdef....json, where abcdef... is the
// hex SHA-256 of the normalized repository path.
func (s *FileStore) path(repo string) string {
	sum := sha256.Sum256([]byte(NormalizeRepoPath(repo)))
	key := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, key[:2], key[2:]+".json")
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
