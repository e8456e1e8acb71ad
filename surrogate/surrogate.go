// Package surrogate maintains the tag -> {cache keys} index behind
// non-versioned invalidation, plus the key normalization and header
// formatting shared by backends.
//
// The index is best-effort: it may hold keys whose entries already expired
// (deleting those is a no-op) and may under-report when the index TTL is
// shorter than an entry's own TTL. Growth is capped by the TTL, not by size.
package surrogate

import "context"

// Index records which cache keys carry which tag.
type Index interface {
	// Add records that key carries tag and refreshes the index entry's TTL.
	Add(ctx context.Context, tag, key string) error

	// Invalidate returns and removes the full key set for tag. An unknown
	// tag yields an empty set, not an error.
	Invalidate(ctx context.Context, tag string) ([]string, error)

	// RemoveKey drops a single key from tag's set. Used when an entry is
	// explicitly deleted before natural expiry.
	RemoveKey(ctx context.Context, tag, key string) error
}

// Null is a no-op index for backends that delegate invalidation entirely to
// an external system tracking its own tag membership (e.g. a CDN purge API).
type Null struct{}

var _ Index = Null{}

func (Null) Add(context.Context, string, string) error { return nil }
func (Null) Invalidate(context.Context, string) ([]string, error) {
	return nil, nil
}
func (Null) RemoveKey(context.Context, string, string) error { return nil }
