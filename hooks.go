package tagcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the middleware calls them
// on the serving path. Wrap with hooks/async when the sink can stall.
type Hooks interface {
	// A cached entry was replayed.
	Hit(key string)

	// No entry; the handler ran and (on 200) the response was stored.
	Miss(key string)

	// Caching was skipped for this request.
	// reason ∈ {"flag", "predicate", "method", "refresh"}
	Bypass(reason string)

	// Backend lookup failed; the request was served uncached.
	LookupFailed(key string, err error)

	// Storing a fresh response failed; the response was still served.
	StoreFailed(key string, err error)

	// Tag resolution failed (dynamic tag panic or version read error).
	ResolveFailed(err error)

	// An explicit surrogate purge failed on some backend.
	PurgeFailed(tag string, err error)

	// A version bump failed; old entries stay reachable until it succeeds.
	BumpFailed(name string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                 {}
func (NopHooks) Miss(string)                {}
func (NopHooks) Bypass(string)              {}
func (NopHooks) LookupFailed(string, error) {}
func (NopHooks) StoreFailed(string, error)  {}
func (NopHooks) ResolveFailed(error)        {}
func (NopHooks) PurgeFailed(string, error)  {}
func (NopHooks) BumpFailed(string, error)   {}
