package surrogate

import (
	"context"
	"time"

	"github.com/unkn0wn-root/tagcache/store"
)

// DefaultTTL bounds how long an index entry survives without new members.
const DefaultTTL = 24 * time.Hour

// DefaultPrefix namespaces index entries away from page entries in a shared
// store.
const DefaultPrefix = "_surrogate:"

// SetIndex keeps tag membership in the store's native sets. Adds ride the
// store's atomic add-to-set primitive, so concurrent writers from different
// requests never lose a member. Preferred automatically whenever the
// configured store implements store.SetStore.
type SetIndex struct {
	sets   store.SetStore
	ttl    time.Duration
	prefix string
}

var _ Index = (*SetIndex)(nil)

func NewSetIndex(sets store.SetStore, ttl time.Duration, prefix string) *SetIndex {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SetIndex{sets: sets, ttl: ttl, prefix: prefix}
}

func (i *SetIndex) indexKey(tag string) string { return i.prefix + tag }

func (i *SetIndex) Add(ctx context.Context, tag, key string) error {
	return i.sets.AddToSet(ctx, i.indexKey(tag), key, i.ttl)
}

func (i *SetIndex) Invalidate(ctx context.Context, tag string) ([]string, error) {
	ik := i.indexKey(tag)
	members, err := i.sets.SetMembers(ctx, ik)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	if err := i.sets.DeleteSet(ctx, ik); err != nil {
		return nil, err
	}
	return members, nil
}

func (i *SetIndex) RemoveKey(ctx context.Context, tag, key string) error {
	return i.sets.RemoveFromSet(ctx, i.indexKey(tag), key)
}

// ForStore picks the strongest index the store supports: native sets when
// available, otherwise the read-modify-write fallback. Selection happens once
// at backend construction, not per call.
func ForStore(s store.Store, ttl time.Duration, prefix string) Index {
	if ss, ok := s.(store.SetStore); ok {
		return NewSetIndex(ss, ttl, prefix)
	}
	return NewStoreIndex(s, ttl, prefix)
}
