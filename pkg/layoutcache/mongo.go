package layoutcache

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// MongoCollection is the collection layouts are stored in.
const MongoCollection = "layouts"

// MongoConfig configures a MongoStore.
type MongoConfig struct {
	URI      string
	Database string
}

// MongoStore keeps one document per repository, keyed by repository path.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type layoutDoc struct {
	Repo      string          `bson:"_id"`
	Positions graph.Positions `bson:"positions"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := cfg.Database
	if db == "" {
		db = "commitcanvas"
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(db).Collection(MongoCollection),
	}, nil
}

// Get reads the layout for repo.
func (s *MongoStore) Get(ctx context.Context, repo string) (graph.Positions, error) {
	var doc layoutDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": NormalizeRepoPath(repo)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return graph.Positions{}, nil
	}
	if err != nil {
		return nil, Retryable(err)
	}
	if doc.Positions == nil {
		return graph.Positions{}, nil
	}
	return doc.Positions, nil
}

// Save upserts the layout for repo.
func (s *MongoStore) Save(ctx context.Context, repo string, positions graph.Positions) error {
	clean := make(graph.Positions, len(positions))
	for id, p := range positions {
		if p.IsFinite() {
			clean[id] = p
		}
	}
	repo = NormalizeRepoPath(repo)
	doc := layoutDoc{Repo: repo, Positions: clean, UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": repo}, doc, options.Replace().SetUpsert(true))
	return Retryable(err)
}

// Delete removes the layout for repo.
func (s *MongoStore) Delete(ctx context.Context, repo string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": NormalizeRepoPath(repo)})
	return Retryable(err)
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
