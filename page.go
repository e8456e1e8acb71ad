package tagcache

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/tagcache/backend"
)

type ctxKey int

const (
	bypassKey ctxKey = iota
	refreshKey
)

// WithBypass marks the request context so caching is skipped entirely: no
// lookup, no store.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey, true)
}

// WithRefresh forces regeneration: the lookup is skipped but the fresh
// response is still stored, replacing whatever was cached.
func WithRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshKey, true)
}

func bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey).(bool)
	return v
}

func refreshing(ctx context.Context) bool {
	v, _ := ctx.Value(refreshKey).(bool)
	return v
}

// PageOptions configure one caching middleware instance.
type PageOptions struct {
	// Prefix isolates this handler's keys. Required in practice when Key
	// does not include the path (QueryParamsKey).
	Prefix string

	// Key derives the request part of the storage key; nil => RequestKey.
	Key KeyFunc

	// Tags declare the surrogate keys attached to every cached response.
	Tags []Tag

	// Timeout is the entry TTL; 0 => backend default. When set, successful
	// responses also get Cache-Control max-age / Expires patched to match.
	Timeout time.Duration

	// OnlyIf gates caching per request; nil => cache all GET/HEAD requests.
	OnlyIf func(*http.Request) bool

	// Backend names the registry backend; empty => the registry default.
	Backend string

	// Registry resolves the backend; nil => the package-level registry
	// installed by Configure.
	Registry *Registry
}

// Page returns middleware that serves cached responses for GET/HEAD requests
// and records cache misses. Backend failures never fail the request; the
// handler runs and the response is served uncached.
func Page(opts PageOptions) func(http.Handler) http.Handler {
	key := opts.Key
	if key == nil {
		key = RequestKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg := opts.Registry
			if reg == nil {
				reg = currentRegistry()
			}
			if reg == nil {
				next.ServeHTTP(w, r)
				return
			}
			log, hooks := reg.log, reg.hooks

			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				hooks.Bypass("method")
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if bypassed(ctx) {
				hooks.Bypass("flag")
				next.ServeHTTP(w, r)
				return
			}
			if opts.OnlyIf != nil && !opts.OnlyIf(r) {
				hooks.Bypass("predicate")
				next.ServeHTTP(w, r)
				return
			}

			b, err := reg.Backend(opts.Backend)
			if err != nil {
				log.Error("tagcache.backend_lookup_failed", Fields{"backend": opts.Backend, "err": err})
				next.ServeHTTP(w, r)
				return
			}

			tags, err := resolveTags(ctx, r, opts.Tags, b)
			if err != nil {
				hooks.ResolveFailed(err)
				log.Warn("tagcache.resolve_failed", Fields{"prefix": opts.Prefix, "err": err})
				next.ServeHTTP(w, r)
				return
			}

			storageKey := composeKey(opts.Prefix, tags.versioned, key(r))

			if refreshing(ctx) {
				hooks.Bypass("refresh")
			} else {
				entry, ok, err := b.Get(ctx, storageKey)
				if err != nil {
					// Degraded backend: serve uncached, skip the store too so a
					// flapping backend is not hammered with writes.
					hooks.LookupFailed(storageKey, err)
					log.Warn("tagcache.lookup_failed", Fields{"key": storageKey, "err": err})
					next.ServeHTTP(w, r)
					return
				}
				if ok {
					hooks.Hit(storageKey)
					replay(w, entry, b)
					return
				}
				hooks.Miss(storageKey)
			}

			rec := &recorder{ResponseWriter: w, ttl: opts.Timeout}
			b.PrepareResponse(w.Header(), tags.all())
			next.ServeHTTP(rec, r)

			// Only GET responses are stored. HEAD may read a GET-primed
			// entry, but a HEAD-rendered body is empty and would poison
			// every later GET under the same key.
			if r.Method != http.MethodGet || !cacheable(rec) {
				return
			}
			entry := rec.entry(storageKey, opts.Timeout, tags)
			if err := b.Set(ctx, entry); err != nil {
				hooks.StoreFailed(storageKey, err)
				log.Warn("tagcache.store_failed", Fields{"key": storageKey, "err": err})
			}
		})
	}
}

func replay(w http.ResponseWriter, entry *backend.Entry, b backend.Backend) {
	h := w.Header()
	for name, values := range entry.Header {
		h[name] = values
	}
	b.PrepareResponse(h, entry.AllSurrogateKeys())
	w.WriteHeader(entry.Status)
	_, _ = w.Write(entry.Body)
}

// recorder tees the response to the client while keeping a copy for the
// cache. Headers are patched at WriteHeader time so the client and the
// cached entry agree on freshness.
type recorder struct {
	http.ResponseWriter
	ttl    time.Duration
	status int
	wrote  bool
	buf    bytes.Buffer
}

func (rec *recorder) WriteHeader(status int) {
	if rec.wrote {
		return
	}
	rec.wrote = true
	rec.status = status
	if status == http.StatusOK && rec.ttl > 0 {
		patchCacheHeaders(rec.Header(), rec.ttl)
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *recorder) Write(p []byte) (int, error) {
	if !rec.wrote {
		rec.WriteHeader(http.StatusOK)
	}
	if rec.status == http.StatusOK {
		rec.buf.Write(p)
	}
	return rec.ResponseWriter.Write(p)
}

// entry snapshots the recorded response for storage.
func (rec *recorder) entry(key string, ttl time.Duration, tags resolvedTags) *backend.Entry {
	return &backend.Entry{
		Key:           key,
		Status:        rec.status,
		Header:        rec.Header().Clone(),
		Body:          rec.buf.Bytes(),
		TTL:           ttl,
		SurrogateKeys: tags.plain,
		VersionedKeys: tags.versioned,
	}
}

func (rec *recorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// cacheable rejects everything but plain 200 responses: error pages churn,
// and cookie-bearing or explicitly private responses must never be shared
// across users.
func cacheable(rec *recorder) bool {
	if rec.status != http.StatusOK {
		return false
	}
	h := rec.Header()
	if h.Get("Set-Cookie") != "" {
		return false
	}
	cc := strings.ToLower(h.Get("Cache-Control"))
	if strings.Contains(cc, "no-store") || strings.Contains(cc, "private") {
		return false
	}
	return true
}

// patchCacheHeaders advertises the cache TTL to downstream caches without
// overriding headers the handler set itself.
func patchCacheHeaders(h http.Header, ttl time.Duration) {
	if h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", "max-age="+strconv.Itoa(int(ttl/time.Second)))
	}
	if h.Get("Expires") == "" {
		h.Set("Expires", time.Now().Add(ttl).UTC().Format(http.TimeFormat))
	}
}
