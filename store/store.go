// Package store defines the raw key-value substrate used by tagcache
// backends.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no
// prepended/appended metadata, no re-encoding, no mutation). If a store
// performs internal transforms (e.g., compression), they MUST be fully
// reversed so that the bytes returned by Get are identical to the bytes
// provided to Set.
//
// The keyspaces "page:<ns>:", "ver:<ns>:" and the configured surrogate-index
// prefix are owned by tagcache. External code MUST NOT write values under
// these prefixes; foreign writes are treated as corruption by the wire-format
// validation and deleted on read.
package store

import (
	"context"
	"time"
)

// Store is a minimal byte store with TTLs. Must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl <= 0 means no expiry (or the
	// store's global policy where per-entry TTLs are unsupported).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key, reporting whether something was removed.
	// Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// SetStore is an optional capability for stores with native atomic set
// primitives. The surrogate index prefers this variant when available:
// concurrent AddToSet calls from different requests must never lose a member,
// which a read-modify-write emulation cannot guarantee across processes.
type SetStore interface {
	// AddToSet adds member to the set at key and refreshes the set's TTL.
	AddToSet(ctx context.Context, key, member string, ttl time.Duration) error

	// SetMembers returns all members of the set at key; empty on miss.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// RemoveFromSet removes a single member from the set at key.
	RemoveFromSet(ctx context.Context, key, member string) error

	// DeleteSet removes the whole set.
	DeleteSet(ctx context.Context, key string) error
}
