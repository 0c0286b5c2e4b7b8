// Package layoutcache persists user-arranged node positions per repository.
//
// A layout is a flat map from commit ID to position, stored under the
// repository path with trailing slashes removed (see [NormalizeRepoPath]).
// Every backend stores exactly the same JSON document:
//
//	{"a1b2c3": {"x": 0, "y": 0}, "d4e5f6": {"x": 200, "y": 100}}
//
// A missing layout is not an error: [Store.Get] returns an empty map.
//
// # Backends
//
//   - [FileStore]: one JSON file per repository under the user cache dir
//   - [BoltStore]: a single bbolt database, bucket "layouts"
//   - [RedisStore]: key "commitcanvas:layout:<repo>" for shared deployments
//   - [MongoStore]: collection "layouts" keyed by repository path
//   - [MemoryStore]: process-local, for tests and ephemeral sessions
//   - [NullStore]: discards everything
//
// [Open] selects a backend by name from configuration.
//
// # Debounced Writes
//
// Drag gestures end in bursts. [Writer] coalesces them per repository and
// writes once after a quiet period (trailing edge). Transient backend errors
// wrapped with [Retryable] are retried with exponential backoff.
package layoutcache
