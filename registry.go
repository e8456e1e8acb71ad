package tagcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tagcache/backend"
	"github.com/unkn0wn-root/tagcache/backend/cloudflare"
	"github.com/unkn0wn-root/tagcache/backend/fastly"
	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/config"
	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/store/bigcache"
	"github.com/unkn0wn-root/tagcache/store/memory"
	storeredis "github.com/unkn0wn-root/tagcache/store/redis"
	"github.com/unkn0wn-root/tagcache/store/ristretto"
	"github.com/unkn0wn-root/tagcache/surrogate"
	"github.com/unkn0wn-root/tagcache/verstore"
)

type RegistryOptions struct {
	// Logger for degraded-path reporting; nil disables logging.
	Logger Logger

	// Hooks for high-signal events; nil disables them.
	Hooks Hooks
}

// Registry holds the named backends built from a Config and dispatches
// invalidations. Safe for concurrent use after construction.
type Registry struct {
	backends map[string]backend.Backend
	// composites share their members with backends; Close skips them to
	// avoid double-closing.
	owned []backend.Backend
	def   string

	log   Logger
	hooks Hooks
}

// NewRegistry builds every backend the config declares. Construction is
// all-or-nothing: the first backend that fails to build closes the ones
// already built and fails the registry.
func NewRegistry(cfg config.Config, opts RegistryOptions) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		backends: make(map[string]backend.Backend, len(cfg.Backends)),
		def:      cfg.Default(),
		log:      opts.Logger,
		hooks:    opts.Hooks,
	}
	if r.log == nil {
		r.log = NopLogger{}
	}
	if r.hooks == nil {
		r.hooks = NopHooks{}
	}

	// Composites reference other backends by name; build them last.
	for name, bc := range cfg.Backends {
		if bc.Kind == "composite" {
			continue
		}
		b, err := buildBackend(bc)
		if err != nil {
			_ = r.Close(context.Background())
			return nil, fmt.Errorf("tagcache: backend %q: %w", name, err)
		}
		r.backends[name] = b
		r.owned = append(r.owned, b)
	}
	for name, bc := range cfg.Backends {
		if bc.Kind != "composite" {
			continue
		}
		members := make([]backend.Backend, 0, len(bc.Options.Backends))
		for _, member := range bc.Options.Backends {
			members = append(members, r.backends[member])
		}
		comp, err := backend.NewComposite(members...)
		if err != nil {
			_ = r.Close(context.Background())
			return nil, fmt.Errorf("tagcache: backend %q: %w", name, err)
		}
		r.backends[name] = comp
	}
	return r, nil
}

func buildBackend(bc config.Backend) (backend.Backend, error) {
	o := bc.Options
	switch bc.Kind {
	case "store":
		return buildStoreBackend(o)
	case "fastly":
		return fastly.New(fastly.Config{
			ServiceID: o.ServiceID,
			APIKey:    o.APIKey,
			Endpoint:  o.Endpoint,
			SoftPurge: o.SoftPurge,
		})
	case "cloudflare":
		return cloudflare.New(cloudflare.Config{
			ZoneID:   o.ZoneID,
			APIToken: o.APIToken,
			Endpoint: o.Endpoint,
		})
	}
	return nil, fmt.Errorf("unknown backend kind %q", bc.Kind)
}

func buildStoreBackend(o config.Options) (backend.Backend, error) {
	st, redisClient, err := buildStore(o.Store)
	if err != nil {
		return nil, err
	}

	cdc, err := buildCodec(o)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	idx, err := buildIndex(o.Index, st)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	versions, err := buildVersions(o, redisClient)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	return backend.NewStore(backend.StoreOptions{
		Namespace:   o.Namespace,
		Store:       st,
		Codec:       cdc,
		Index:       idx,
		Versions:    versions,
		EntryTTL:    o.TTL,
		IndexTTL:    o.Index.TTL,
		IndexPrefix: o.Index.Prefix,
	})
}

func buildStore(o config.StoreOptions) (store.Store, goredis.UniversalClient, error) {
	switch o.Kind {
	case "", "memory":
		return memory.New(coalesce(o.Memory.CleanupInterval, time.Minute)), nil, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     o.Redis.Addr,
			Username: o.Redis.Username,
			Password: o.Redis.Password,
			DB:       o.Redis.DB,
		})
		st, err := storeredis.New(storeredis.Config{Client: client, CloseClient: true})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return st, client, nil
	case "ristretto":
		st, err := ristretto.New(ristretto.Config{
			NumCounters: coalesce(o.Ristretto.NumCounters, int64(1_000_000)),
			MaxCost:     coalesce(o.Ristretto.MaxCost, int64(256<<20)),
			BufferItems: coalesce(o.Ristretto.BufferItems, int64(64)),
		})
		return st, nil, err
	case "bigcache":
		st, err := bigcache.New(bigcache.Config{
			LifeWindow:         coalesce(o.Bigcache.LifeWindow, 10*time.Minute),
			CleanWindow:        o.Bigcache.CleanWindow,
			MaxEntriesInWindow: o.Bigcache.MaxEntriesInWindow,
			MaxEntrySize:       o.Bigcache.MaxEntrySize,
			HardMaxCacheSizeMB: o.Bigcache.HardMaxCacheSizeMB,
		})
		return st, nil, err
	}
	return nil, nil, fmt.Errorf("unknown store kind %q", o.Kind)
}

func buildCodec(o config.Options) (codec.Codec[backend.Payload], error) {
	var cdc codec.Codec[backend.Payload]
	switch o.Codec {
	case "", "msgpack":
		cdc = codec.Msgpack[backend.Payload]{}
	case "json":
		cdc = codec.JSON[backend.Payload]{}
	case "cbor":
		c, err := codec.NewCBOR[backend.Payload](false)
		if err != nil {
			return nil, err
		}
		cdc = c
	default:
		return nil, fmt.Errorf("unknown codec %q", o.Codec)
	}
	if o.MaxEntryBytes > 0 {
		cdc = codec.Limit[backend.Payload]{Inner: cdc, Max: o.MaxEntryBytes}
	}
	return cdc, nil
}

func buildIndex(o config.IndexOptions, st store.Store) (surrogate.Index, error) {
	switch o.Kind {
	case "", "auto":
		return surrogate.ForStore(st, o.TTL, o.Prefix), nil
	case "set":
		ss, ok := st.(store.SetStore)
		if !ok {
			return nil, errors.New("index kind \"set\" requires a store with native sets")
		}
		return surrogate.NewSetIndex(ss, o.TTL, o.Prefix), nil
	case "store":
		return surrogate.NewStoreIndex(st, o.TTL, o.Prefix), nil
	case "null":
		return surrogate.Null{}, nil
	}
	return nil, fmt.Errorf("unknown index kind %q", o.Kind)
}

func buildVersions(o config.Options, redisClient goredis.UniversalClient) (verstore.VersionStore, error) {
	switch o.Versions.Kind {
	case "", "auto":
		if redisClient != nil {
			return verstore.NewRedis(redisClient, o.Namespace), nil
		}
		return verstore.NewLocal(time.Hour), nil
	case "local":
		return verstore.NewLocal(time.Hour), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("versions kind \"redis\" requires a redis store")
		}
		return verstore.NewRedis(redisClient, o.Namespace), nil
	}
	return nil, fmt.Errorf("unknown versions kind %q", o.Versions.Kind)
}

// Backend returns the named backend; empty name means the default.
func (r *Registry) Backend(name string) (backend.Backend, error) {
	name = coalesce(name, r.def)
	b, ok := r.backends[name]
	if !ok {
		return nil, &UnknownBackendError{Name: name}
	}
	return b, nil
}

// InvalidateTag purges everything a tag covers on the named backend (empty
// name: default). Versioned tags are bumped and the new version is returned;
// literal tags are purged through the surrogate index and the removed count
// is returned. Dynamic tags have no fixed identity to purge.
func (r *Registry) InvalidateTag(ctx context.Context, tag Tag, backendName string) (uint64, error) {
	b, err := r.Backend(backendName)
	if err != nil {
		return 0, err
	}

	switch tag.kind {
	case kindVersioned:
		if tag.nameFn != nil {
			return 0, ErrDynamicInvalidate
		}
		v, err := b.BumpVersion(ctx, surrogate.Normalize(tag.name), tag.ttl)
		if err != nil {
			r.hooks.BumpFailed(tag.name, err)
			r.log.Error("tagcache.bump_failed", Fields{"name": tag.name, "err": err})
			return 0, err
		}
		return v, nil
	case kindLiteral:
		n, err := b.InvalidateSurrogate(ctx, surrogate.Normalize(tag.name))
		if err != nil {
			r.hooks.PurgeFailed(tag.name, err)
			r.log.Error("tagcache.purge_failed", Fields{"tag": tag.name, "err": err})
		}
		return uint64(n), err
	default:
		return 0, ErrDynamicInvalidate
	}
}

// InvalidateTags invalidates each tag in turn, never stopping early. The
// per-tag results are summed and the errors aggregated.
func (r *Registry) InvalidateTags(ctx context.Context, tags []Tag, backendName string) (uint64, error) {
	var total uint64
	var errs []error
	for _, tag := range tags {
		n, err := r.InvalidateTag(ctx, tag, backendName)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// Close shuts down every backend the registry built.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, b := range r.owned {
		if err := b.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	defaultMu  sync.RWMutex
	defaultReg *Registry
)

// Configure installs the package-level registry used by Page and the
// package-level invalidation helpers when no explicit Registry is given.
// Calling it twice is an error; tests use ResetForTesting between runs.
func Configure(cfg config.Config, opts RegistryOptions) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultReg != nil {
		return errors.New("tagcache: already configured")
	}
	r, err := NewRegistry(cfg, opts)
	if err != nil {
		return err
	}
	defaultReg = r
	return nil
}

// ResetForTesting closes and removes the package-level registry.
func ResetForTesting() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultReg != nil {
		_ = defaultReg.Close(context.Background())
		defaultReg = nil
	}
}

func currentRegistry() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultReg
}

// InvalidateTag invalidates on the package-level registry's default backend.
func InvalidateTag(ctx context.Context, tag Tag) (uint64, error) {
	r := currentRegistry()
	if r == nil {
		return 0, ErrNotConfigured
	}
	return r.InvalidateTag(ctx, tag, "")
}

// InvalidateTags is the multi-tag form of InvalidateTag.
func InvalidateTags(ctx context.Context, tags []Tag) (uint64, error) {
	r := currentRegistry()
	if r == nil {
		return 0, ErrNotConfigured
	}
	return r.InvalidateTags(ctx, tags, "")
}
