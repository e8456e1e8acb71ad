// Package verstore holds the per-tag version counters behind versioned
// invalidation. A versioned tag's current version is embedded into computed
// cache keys, so bumping the counter makes every existing entry unreachable
// in O(1) without touching the entries themselves.
//
// Counter semantics: an absent or expired counter reads as version 1. A live
// counter is always >= 2 because Bump initializes absent counters to 2 (the
// logical invalidation of the implicit version 1). Counters carry their own
// TTL, refreshed on every bump; if one expires, orphaned entries age out
// through their own TTLs.
package verstore

import (
	"context"
	"time"
)

// VersionStore abstracts where version counters live. Use Local (in-process)
// for single-replica deployments, or Redis for counters shared across
// replicas and surviving restarts.
type VersionStore interface {
	// Version returns the current version for name; absent/expired => 1.
	Version(ctx context.Context, name string) (uint64, error)

	// Bump atomically advances the version and refreshes the counter TTL,
	// returning the new value. An absent counter is initialized to 2. Two
	// concurrent bumps must never both observe the same pre-increment value.
	Bump(ctx context.Context, name string, ttl time.Duration) (uint64, error)

	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}
