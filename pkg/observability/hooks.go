// Package observability provides instrumentation hooks for sessions and the
// layout cache.
//
// Libraries emit events through the registered hooks; the binary decides
// what to do with them (the CLI logs them at debug level). The defaults are
// no-ops so library code never needs a nil check.
//
// # Usage
//
// Register hooks at application startup:
//
//	observability.SetSessionHooks(&myHooks{})
//	observability.SetCacheHooks(&myHooks{})
//
// Libraries call hooks to emit events:
//
//	observability.Session().OnFetchStart(ctx, repo, limit, skip)
//	// ... fetch ...
//	observability.Session().OnFetchComplete(ctx, repo, n, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Session Hooks
// =============================================================================

// SessionHooks receives events from graph sessions.
type SessionHooks interface {
	// Fetch events
	OnFetchStart(ctx context.Context, repo string, limit, skip int)
	OnFetchComplete(ctx context.Context, repo string, commits int, duration time.Duration, err error)

	// OnReconcile records one recompute of node positions.
	OnReconcile(ctx context.Context, repo, mode string, nodes int, duration time.Duration)

	// OnDragEnd records the end of a drag and how many nodes moved with it.
	OnDragEnd(ctx context.Context, repo, nodeID string, moved int)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from layout cache backends.
type CacheHooks interface {
	// OnCacheHit records a load that found a stored layout.
	OnCacheHit(ctx context.Context, backend string, entries int)

	// OnCacheMiss records a load that found nothing.
	OnCacheMiss(ctx context.Context, backend string)

	// OnCacheSave records a persisted layout.
	OnCacheSave(ctx context.Context, backend string, entries int)

	// OnCacheError records a failed read or write.
	OnCacheError(ctx context.Context, backend string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopSessionHooks is a no-op implementation of SessionHooks.
type NoopSessionHooks struct{}

func (NoopSessionHooks) OnFetchStart(context.Context, string, int, int) {}
func (NoopSessionHooks) OnFetchComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopSessionHooks) OnReconcile(context.Context, string, string, int, time.Duration) {}
func (NoopSessionHooks) OnDragEnd(context.Context, string, string, int)                  {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string, int)     {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)         {}
func (NoopCacheHooks) OnCacheSave(context.Context, string, int)    {}
func (NoopCacheHooks) OnCacheError(context.Context, string, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	sessionHooks SessionHooks = NoopSessionHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	hooksMu      sync.RWMutex
)

// SetSessionHooks registers custom session hooks.
// This should be called once at application startup.
func SetSessionHooks(h SessionHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		sessionHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Session returns the registered session hooks.
func Session() SessionHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return sessionHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	sessionHooks = NoopSessionHooks{}
	cacheHooks = NoopCacheHooks{}
}
