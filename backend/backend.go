// Package backend defines the pluggable storage/invalidation targets used by
// tagcache: the KV-store backend, the composite fan-out, and (in
// subpackages) CDN purge backends. All variants are polymorphic over the
// same capability set, so page caching and invalidation behave uniformly
// whether entries live in-process, in Redis, or at the edge.
package backend

import (
	"context"
	"net/http"
	"time"
)

// Entry is the cached artifact: the response material needed to replay a
// page plus the surrogate keys attached at write time. An Entry is owned
// exclusively by the backend that stores it; callers must not retain or
// mutate it after Set returns.
type Entry struct {
	// Key is the composed storage key, unique per backend and namespace.
	Key string

	Status int
	Header http.Header
	Body   []byte

	// TTL is the entry lifetime; 0 means the backend default.
	TTL time.Duration

	// SurrogateKeys are recorded in the surrogate index for bulk
	// invalidation.
	SurrogateKeys []string

	// VersionedKeys are surrogate keys of versioned tags. They are
	// self-invalidating by construction (the version is baked into Key), so
	// they skip the index and only surface in response headers.
	VersionedKeys []string
}

// AllSurrogateKeys returns indexed and versioned keys in declaration order,
// for header emission.
func (e *Entry) AllSurrogateKeys() []string {
	out := make([]string, 0, len(e.SurrogateKeys)+len(e.VersionedKeys))
	out = append(out, e.SurrogateKeys...)
	return append(out, e.VersionedKeys...)
}

// Backend is a storage/invalidation target. Implementations must be safe for
// concurrent use; timeouts on remote calls are the backend's responsibility.
type Backend interface {
	// Get returns the entry stored under key, or (nil, false, nil) on miss.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set stores the entry and records every non-versioned surrogate key in
	// the index. An error means the entry may not be retrievable; callers on
	// the serving path log it and move on rather than failing the request.
	Set(ctx context.Context, entry *Entry) error

	// Delete removes a single entry, reporting whether something was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// InvalidateSurrogate removes every entry recorded under tag and returns
	// the removed count. Purge-API backends report 1 for an accepted purge
	// since they have no local key visibility.
	InvalidateSurrogate(ctx context.Context, tag string) (int, error)

	// PrepareResponse attaches backend-specific metadata (typically one
	// header) to an outgoing response, on both hit and miss paths.
	PrepareResponse(h http.Header, surrogateKeys []string)

	// Version resolves the current version for a versioned tag name,
	// materializing absent counters. Backends without a version store return
	// ErrVersioningUnsupported.
	Version(ctx context.Context, name string, ttl time.Duration) (uint64, error)

	// BumpVersion advances a versioned tag, invalidating every key computed
	// against the previous version in O(1).
	BumpVersion(ctx context.Context, name string, ttl time.Duration) (uint64, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
