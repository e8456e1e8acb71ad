package surrogate

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/store"
)

const stripes = 64

// StoreIndex is the fallback for stores without native set primitives. It
// emulates sets with read-modify-write over a JSON-encoded key list, guarded
// by per-tag striped locks. The lock only covers writers in this process,
// which is exactly the population using plain stores: memory, ristretto and
// bigcache are all in-process. Cross-process use of this index can lose
// members and should configure a SetStore-capable store instead.
type StoreIndex struct {
	st     store.Store
	ttl    time.Duration
	prefix string
	cdc    codec.JSON[[]string]

	locks [stripes]sync.Mutex
}

var _ Index = (*StoreIndex)(nil)

func NewStoreIndex(st store.Store, ttl time.Duration, prefix string) *StoreIndex {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &StoreIndex{st: st, ttl: ttl, prefix: prefix}
}

func (i *StoreIndex) indexKey(tag string) string { return i.prefix + tag }

func (i *StoreIndex) lock(tag string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tag))
	return &i.locks[h.Sum32()%stripes]
}

func (i *StoreIndex) Add(ctx context.Context, tag, key string) error {
	mu := i.lock(tag)
	mu.Lock()
	defer mu.Unlock()

	keys, err := i.load(ctx, tag)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			// Membership is already recorded; still refresh the TTL so the
			// index does not expire under entries that keep being rewritten.
			return i.save(ctx, tag, keys)
		}
	}
	return i.save(ctx, tag, append(keys, key))
}

func (i *StoreIndex) Invalidate(ctx context.Context, tag string) ([]string, error) {
	mu := i.lock(tag)
	mu.Lock()
	defer mu.Unlock()

	keys, err := i.load(ctx, tag)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if _, err := i.st.Delete(ctx, i.indexKey(tag)); err != nil {
		return nil, err
	}
	return keys, nil
}

func (i *StoreIndex) RemoveKey(ctx context.Context, tag, key string) error {
	mu := i.lock(tag)
	mu.Lock()
	defer mu.Unlock()

	keys, err := i.load(ctx, tag)
	if err != nil {
		return err
	}
	kept := keys[:0]
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	if len(kept) == len(keys) {
		return nil
	}
	if len(kept) == 0 {
		_, err := i.st.Delete(ctx, i.indexKey(tag))
		return err
	}
	return i.save(ctx, tag, kept)
}

func (i *StoreIndex) load(ctx context.Context, tag string) ([]string, error) {
	raw, ok, err := i.st.Get(ctx, i.indexKey(tag))
	if err != nil || !ok {
		return nil, err
	}
	keys, err := i.cdc.Decode(raw)
	if err != nil {
		// Corrupt index entry; drop it rather than fail invalidation forever.
		_, _ = i.st.Delete(ctx, i.indexKey(tag))
		return nil, nil
	}
	return keys, nil
}

func (i *StoreIndex) save(ctx context.Context, tag string, keys []string) error {
	raw, err := i.cdc.Encode(keys)
	if err != nil {
		return err
	}
	return i.st.Set(ctx, i.indexKey(tag), raw, i.ttl)
}
