package layoutcache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// RedisKeyPrefix prefixes every layout key.
const RedisKeyPrefix = "commitcanvas:layout:"

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps layouts in Redis so several server instances share them.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// Get reads the layout for repo.
func (s *RedisStore) Get(ctx context.Context, repo string) (graph.Positions, error) {
	data, err := s.client.Get(ctx, redisKey(repo)).Bytes()
	if errors.Is(err, redis.Nil) {
		return graph.Positions{}, nil
	}
	if err != nil {
		return nil, Retryable(err)
	}
	return decode(data)
}

// Save replaces the layout for repo. Layouts never expire.
func (s *RedisStore) Save(ctx context.Context, repo string, positions graph.Positions) error {
	data, err := encode(positions)
	if err != nil {
		return err
	}
	return Retryable(s.client.Set(ctx, redisKey(repo), data, 0).Err())
}

// Delete removes the layout for repo.
func (s *RedisStore) Delete(ctx context.Context, repo string) error {
	return Retryable(s.client.Del(ctx, redisKey(repo)).Err())
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }

func redisKey(repo string) string { return RedisKeyPrefix + NormalizeRepoPath(repo) }

var _ Store = (*RedisStore)(nil)
