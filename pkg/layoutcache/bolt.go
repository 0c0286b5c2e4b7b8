package layoutcache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/matzehuels/commitcanvas/pkg/graph"
)

var bucketLayouts = []byte("layouts")

// BoltStore keeps every repository's layout in one bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketLayouts)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Get reads the layout for repo.
func (s *BoltStore) Get(ctx context.Context, repo string) (graph.Positions, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketLayouts).Get([]byte(NormalizeRepoPath(repo))); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Save replaces the layout for repo.
func (s *BoltStore) Save(ctx context.Context, repo string, positions graph.Positions) error {
	data, err := encode(positions)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLayouts).Put([]byte(NormalizeRepoPath(repo)), data)
	})
}

// Delete removes the layout for repo.
func (s *BoltStore) Delete(ctx context.Context, repo string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLayouts).Delete([]byte(NormalizeRepoPath(repo)))
	})
}

// Repos lists every repository with a stored layout.
func (s *BoltStore) Repos() ([]string, error) {
	var repos []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLayouts).ForEach(func(k, _ []byte) error {
			repos = append(repos, string(k))
			return nil
		})
	})
	return repos, err
}

// Close closes the database.
func (s *BoltStore) Close() error { return s.db.Close() }

var _ Store = (*BoltStore)(nil)
