package layoutcache

import (
	"context"

	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// NullStore never stores anything. Useful when persistence is disabled.
type NullStore struct{}

// Get always returns an empty layout.
func (NullStore) Get(context.Context, string) (graph.Positions, error) {
	return graph.Positions{}, nil
}

// Save does nothing.
func (NullStore) Save(context.Context, string, graph.Positions) error { return nil }

// Delete does nothing.
func (NullStore) Delete(context.Context, string) error { return nil }

// Close does nothing.
func (NullStore) Close() error { return nil }

var _ Store = NullStore{}
