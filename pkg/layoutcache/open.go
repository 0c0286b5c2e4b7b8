package layoutcache

import (
	"context"
	"path/filepath"

	"github.com/matzehuels/commitcanvas/pkg/errors"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Backends lists every backend name accepted by Open.
var Backends = []string{BackendFile, BackendBolt, BackendRedis, BackendMongo, BackendMemory, BackendNone}

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Dir is the root for the file backend and the default location of the
	// bolt database.
	Dir      string
	BoltPath string
	Redis    RedisConfig
	Mongo    MongoConfig
}

// Open creates the configured backend wrapped with instrumentation.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case BackendFile, "":
		s, err = NewFileStore(cfg.Dir)
	case BackendBolt:
		path := cfg.BoltPath
		if path == "" {
			path = filepath.Join(cfg.Dir, "layouts.db")
		}
		s, err = OpenBolt(path)
	case BackendRedis:
		s, err = NewRedisStore(ctx, cfg.Redis)
	case BackendMongo:
		s, err = NewMongoStore(ctx, cfg.Mongo)
	case BackendMemory:
		s = NewMemoryStore()
	case BackendNone:
		s = NullStore{}
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistence, err, "open %s layout cache", cfg.Backend)
	}
	name := cfg.Backend
	if name == "" {
		name = BackendFile
	}
	return Instrument(s, name), nil
}
