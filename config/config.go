// Package config loads the backend topology from YAML/JSON files or plain
// maps. Decoding is strict: unknown keys anywhere in the tree fail the load,
// so typos surface at startup instead of silently selecting defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the full backend topology: a set of named backends plus the name
// used when callers do not pick one explicitly.
type Config struct {
	// DefaultBackend names the backend used when no name is given. Optional
	// when exactly one backend is configured.
	DefaultBackend string `koanf:"default_backend"`

	Backends map[string]Backend `koanf:"backends"`
}

// Backend declares one named backend and its kind-specific options.
type Backend struct {
	// Kind selects the implementation: store, composite, fastly, cloudflare.
	Kind    string  `koanf:"backend"`
	Options Options `koanf:"options"`
}

// Options carries every kind's settings in one shape; Validate enforces the
// fields relevant to the declared kind.
type Options struct {
	// store
	Namespace     string         `koanf:"namespace"`
	TTL           time.Duration  `koanf:"ttl"`
	Codec         string         `koanf:"codec"`
	MaxEntryBytes int            `koanf:"max_entry_bytes"`
	Store         StoreOptions   `koanf:"store"`
	Index         IndexOptions   `koanf:"index"`
	Versions      VersionOptions `koanf:"versions"`

	// composite
	Backends []string `koanf:"backends"`

	// fastly
	ServiceID string `koanf:"service_id"`
	APIKey    string `koanf:"api_key"`
	SoftPurge bool   `koanf:"soft_purge"`

	// cloudflare
	ZoneID   string `koanf:"zone_id"`
	APIToken string `koanf:"api_token"`

	// fastly + cloudflare
	Endpoint string `koanf:"endpoint"`
}

type StoreOptions struct {
	// Kind: redis, ristretto, bigcache, memory. Empty => memory.
	Kind      string           `koanf:"kind"`
	Redis     RedisOptions     `koanf:"redis"`
	Ristretto RistrettoOptions `koanf:"ristretto"`
	Bigcache  BigcacheOptions  `koanf:"bigcache"`
	Memory    MemoryOptions    `koanf:"memory"`
}

type RedisOptions struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type RistrettoOptions struct {
	NumCounters int64 `koanf:"num_counters"`
	MaxCost     int64 `koanf:"max_cost"`
	BufferItems int64 `koanf:"buffer_items"`
}

type BigcacheOptions struct {
	LifeWindow         time.Duration `koanf:"life_window"`
	CleanWindow        time.Duration `koanf:"clean_window"`
	MaxEntriesInWindow int           `koanf:"max_entries_in_window"`
	MaxEntrySize       int           `koanf:"max_entry_size"`
	HardMaxCacheSizeMB int           `koanf:"hard_max_cache_size_mb"`
}

type MemoryOptions struct {
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

type IndexOptions struct {
	// Kind: auto, set, store, null. auto picks the native-set index when the
	// store supports sets and the read-modify-write index otherwise.
	Kind   string        `koanf:"kind"`
	TTL    time.Duration `koanf:"ttl"`
	Prefix string        `koanf:"prefix"`
}

type VersionOptions struct {
	// Kind: auto, local, redis. auto follows the store: redis counters for a
	// redis store, in-process otherwise.
	Kind string        `koanf:"kind"`
	TTL  time.Duration `koanf:"ttl"`
}

// Error reports an invalid or unloadable configuration.
type Error struct {
	Path string // file path or config key, when known
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errf(path, format string, args ...any) *Error {
	return &Error{Path: path, Err: fmt.Errorf(format, args...)}
}

var (
	storeKinds   = map[string]bool{"": true, "redis": true, "ristretto": true, "bigcache": true, "memory": true}
	indexKinds   = map[string]bool{"": true, "auto": true, "set": true, "store": true, "null": true}
	versionKinds = map[string]bool{"": true, "auto": true, "local": true, "redis": true}
	codecNames   = map[string]bool{"": true, "msgpack": true, "json": true, "cbor": true}
)

// Validate checks cross-field consistency after a strict decode.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return errf("backends", "at least one backend is required")
	}
	if c.DefaultBackend != "" {
		if _, ok := c.Backends[c.DefaultBackend]; !ok {
			return errf("default_backend", "unknown backend %q", c.DefaultBackend)
		}
	} else if len(c.Backends) > 1 {
		return errf("default_backend", "required when more than one backend is configured")
	}

	for name, b := range c.Backends {
		if err := b.validate(name, c.Backends); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) validate(name string, all map[string]Backend) error {
	path := "backends." + name
	switch b.Kind {
	case "store":
		if b.Options.Namespace == "" {
			return errf(path, "namespace is required")
		}
		if !storeKinds[b.Options.Store.Kind] {
			return errf(path, "unknown store kind %q", b.Options.Store.Kind)
		}
		if !indexKinds[b.Options.Index.Kind] {
			return errf(path, "unknown index kind %q", b.Options.Index.Kind)
		}
		if !versionKinds[b.Options.Versions.Kind] {
			return errf(path, "unknown versions kind %q", b.Options.Versions.Kind)
		}
		if !codecNames[b.Options.Codec] {
			return errf(path, "unknown codec %q", b.Options.Codec)
		}
		if b.Options.Store.Kind == "redis" && b.Options.Store.Redis.Addr == "" {
			return errf(path, "store.redis.addr is required")
		}
	case "composite":
		if len(b.Options.Backends) < 1 {
			return errf(path, "composite needs at least one member")
		}
		for _, member := range b.Options.Backends {
			m, ok := all[member]
			if !ok {
				return errf(path, "unknown member backend %q", member)
			}
			if m.Kind == "composite" {
				return errf(path, "composite member %q may not itself be a composite", member)
			}
		}
	case "fastly":
		if b.Options.ServiceID == "" || b.Options.APIKey == "" {
			return errf(path, "service_id and api_key are required")
		}
	case "cloudflare":
		if b.Options.ZoneID == "" || b.Options.APIToken == "" {
			return errf(path, "zone_id and api_token are required")
		}
	default:
		return errf(path, "unknown backend kind %q", b.Kind)
	}
	return nil
}

// Default returns the effective default backend name.
func (c *Config) Default() string {
	if c.DefaultBackend != "" {
		return c.DefaultBackend
	}
	for name := range c.Backends {
		return name
	}
	return ""
}
