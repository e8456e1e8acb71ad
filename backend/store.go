package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/internal/wire"
	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/surrogate"
	"github.com/unkn0wn-root/tagcache/verstore"
)

const (
	// DefaultTTL applies to entries stored with TTL == 0.
	DefaultTTL = 10 * time.Minute

	// DefaultVersionTTL is the counter lifetime for versioned tags. Old
	// entries become unreachable the moment a counter expires and resets,
	// so this only needs to outlive the longest entry TTL.
	DefaultVersionTTL = 10 * 24 * time.Hour
)

// Payload is the serialized shape of an Entry's response material. Exported
// so alternative codecs can be plugged in via StoreOptions.
type Payload struct {
	Status        int                 `msgpack:"s" json:"status"`
	Header        map[string][]string `msgpack:"h" json:"header"`
	Body          []byte              `msgpack:"b" json:"body"`
	SurrogateKeys []string            `msgpack:"k" json:"surrogate_keys,omitempty"`
	VersionedKeys []string            `msgpack:"v" json:"versioned_keys,omitempty"`
	StoredAt      time.Time           `msgpack:"t" json:"stored_at"`
}

// StoreOptions configure a KV-store backend. Namespace and Store are
// required; everything else has defaults.
type StoreOptions struct {
	// Namespace isolates this backend's keys in a shared store.
	Namespace string
	Store     store.Store

	// Codec serializes payloads; nil => Msgpack.
	Codec codec.Codec[Payload]

	// Index tracks tag membership; nil => auto-selected for Store
	// (native sets when the store supports them, read-modify-write
	// otherwise).
	Index surrogate.Index

	// Versions holds versioned-tag counters; nil => in-process store.
	Versions verstore.VersionStore

	// EntryTTL replaces DefaultTTL for entries stored with TTL == 0.
	EntryTTL time.Duration

	// IndexTTL/IndexPrefix tune the auto-selected index; ignored when Index
	// is set explicitly.
	IndexTTL    time.Duration
	IndexPrefix string
}

// StoreBackend keeps entries in a raw byte store, tag membership in a
// surrogate index, and versioned-tag counters in a version store. This is
// the default backend variant.
type StoreBackend struct {
	ns       string
	st       store.Store
	cdc      codec.Codec[Payload]
	index    surrogate.Index
	versions verstore.VersionStore
	entryTTL time.Duration
}

var _ Backend = (*StoreBackend)(nil)

func NewStore(opts StoreOptions) (*StoreBackend, error) {
	if opts.Namespace == "" {
		return nil, errors.New("tagcache: namespace is required")
	}
	if opts.Store == nil {
		return nil, errors.New("tagcache: store is required")
	}

	b := &StoreBackend{
		ns:       opts.Namespace,
		st:       opts.Store,
		cdc:      opts.Codec,
		index:    opts.Index,
		versions: opts.Versions,
		entryTTL: opts.EntryTTL,
	}
	if b.cdc == nil {
		b.cdc = codec.Msgpack[Payload]{}
	}
	if b.index == nil {
		b.index = surrogate.ForStore(opts.Store, opts.IndexTTL, opts.IndexPrefix)
	}
	if b.versions == nil {
		b.versions = verstore.NewLocal(time.Hour)
	}
	if b.entryTTL <= 0 {
		b.entryTTL = DefaultTTL
	}
	return b, nil
}

func (b *StoreBackend) entryKey(key string) string {
	return "page:" + b.ns + ":" + key
}

func (b *StoreBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	sk := b.entryKey(key)
	raw, ok, err := b.st.Get(ctx, sk)
	if err != nil {
		return nil, false, Unavailable("get", err)
	}
	if !ok {
		return nil, false, nil
	}

	framed, err := wire.DecodeEntry(raw)
	if err != nil {
		_, _ = b.st.Delete(ctx, sk) // self-heal corrupt
		return nil, false, nil
	}
	p, err := b.cdc.Decode(framed)
	if err != nil {
		_, _ = b.st.Delete(ctx, sk) // self-heal
		return nil, false, nil
	}

	return &Entry{
		Key:           key,
		Status:        p.Status,
		Header:        http.Header(p.Header),
		Body:          p.Body,
		SurrogateKeys: p.SurrogateKeys,
		VersionedKeys: p.VersionedKeys,
	}, true, nil
}

func (b *StoreBackend) Set(ctx context.Context, entry *Entry) error {
	p := Payload{
		Status:        entry.Status,
		Header:        entry.Header,
		Body:          entry.Body,
		SurrogateKeys: entry.SurrogateKeys,
		VersionedKeys: entry.VersionedKeys,
		StoredAt:      time.Now().UTC(),
	}
	framed, err := b.cdc.Encode(p)
	if err != nil {
		return err
	}

	ttl := entry.TTL
	if ttl <= 0 {
		ttl = b.entryTTL
	}
	if err := b.st.Set(ctx, b.entryKey(entry.Key), wire.EncodeEntry(framed), ttl); err != nil {
		return Unavailable("set", err)
	}

	// Index membership for non-versioned tags. The entry is already stored;
	// a failing index add means this entry may escape a later bulk
	// invalidation, so the error is surfaced for the caller to log.
	var errs []error
	for _, tag := range entry.SurrogateKeys {
		if err := b.index.Add(ctx, tag, entry.Key); err != nil {
			errs = append(errs, Unavailable("index add "+tag, err))
		}
	}
	return errors.Join(errs...)
}

// Delete removes a single entry and drops its index memberships, so tags
// shared with other entries stop tracking the removed key ahead of the index
// TTL. Membership removal is best-effort: a stale member left behind is a
// no-op delete on the next invalidation.
func (b *StoreBackend) Delete(ctx context.Context, key string) (bool, error) {
	entry, found, err := b.Get(ctx, key)
	if err != nil {
		return false, err
	}

	ok, err := b.st.Delete(ctx, b.entryKey(key))
	if err != nil {
		return false, Unavailable("delete", err)
	}
	if found {
		for _, tag := range entry.SurrogateKeys {
			_ = b.index.RemoveKey(ctx, tag, key)
		}
	}
	return ok, nil
}

// InvalidateSurrogate drains the index entry for tag and deletes every
// recorded key. The index is best-effort: keys whose entries already expired
// count as no-ops, not errors.
func (b *StoreBackend) InvalidateSurrogate(ctx context.Context, tag string) (int, error) {
	keys, err := b.index.Invalidate(ctx, tag)
	if err != nil {
		return 0, Unavailable("index invalidate "+tag, err)
	}

	count := 0
	var errs []error
	for _, key := range keys {
		ok, err := b.Delete(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			count++
		}
	}
	return count, errors.Join(errs...)
}

// PrepareResponse is a no-op: the store backend serves from within the
// process and needs no edge metadata on the response.
func (b *StoreBackend) PrepareResponse(http.Header, []string) {}

// Version reads the current version for name. A read of the implicit
// version 1 means the counter is absent, so it is materialized with an
// initial bump: the first request then resolves version 2, the counter gets
// its TTL, and later invalidations are plain increments.
func (b *StoreBackend) Version(ctx context.Context, name string, ttl time.Duration) (uint64, error) {
	if ttl <= 0 {
		ttl = DefaultVersionTTL
	}
	v, err := b.versions.Version(ctx, name)
	if err != nil {
		return 0, Unavailable("version "+name, err)
	}
	if v == 1 {
		v, err = b.versions.Bump(ctx, name, ttl)
		if err != nil {
			return 0, Unavailable("version init "+name, err)
		}
	}
	return v, nil
}

func (b *StoreBackend) BumpVersion(ctx context.Context, name string, ttl time.Duration) (uint64, error) {
	if ttl <= 0 {
		ttl = DefaultVersionTTL
	}
	v, err := b.versions.Bump(ctx, name, ttl)
	if err != nil {
		return 0, Unavailable("bump "+name, err)
	}
	return v, nil
}

func (b *StoreBackend) Close(ctx context.Context) error {
	verr := b.versions.Close(ctx)
	serr := b.st.Close(ctx)
	if serr != nil {
		return serr
	}
	return verr
}
