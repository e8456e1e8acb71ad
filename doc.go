// Package tagcache caches HTTP responses under surrogate keys (tags) so that
// whole groups of pages can be invalidated together, plus versioned tags whose
// invalidation is an O(1) counter bump instead of a scan.
//
// Components:
//   - Backend: where entries live. StoreBackend over a byte Store
//     (memory, Ristretto, BigCache, Redis), Composite fan-out, or CDN purge
//     backends (Fastly, Cloudflare).
//   - Tag: Literal, Dynamic (computed per request) and Versioned variants.
//     Versioned tags resolve to "{name}:v{version}" with the version baked
//     into the storage key; bumping the version orphans every old entry.
//   - Page: middleware that resolves tags, composes the key, replays hits and
//     records misses.
//   - Registry: builds named backends from configuration and dispatches
//     invalidations.
//
// Minimal usage:
//
//	cfg, _ := config.LoadFile("cache.yaml")
//	reg, _ := tagcache.NewRegistry(cfg, tagcache.RegistryOptions{})
//	h := tagcache.Page(tagcache.PageOptions{
//	    Prefix:   "products",
//	    Tags:     []tagcache.Tag{tagcache.Literal("products")},
//	    Registry: reg,
//	})(listProducts)
//
//	// later, after a write:
//	_, _ = reg.InvalidateTag(ctx, tagcache.Literal("products"), "")
package tagcache
