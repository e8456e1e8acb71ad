package tagcache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
)

// KeyFunc derives the request-dependent part of the storage key. Two requests
// mapping to the same key share a cached response, so the function must cover
// everything the response varies on.
type KeyFunc func(*http.Request) string

// QueryParamsKey keys on the query string with parameter names ordered
// case-insensitively. Requests that differ only in parameter order share an
// entry; names and values keep their case, so ?q=Foo and ?q=foo stay
// distinct. Pair it with a distinct Prefix per handler since the path is not
// included.
func QueryParamsKey(r *http.Request) string {
	q := r.URL.Query()
	if len(q) == 0 {
		return "no-params"
	}

	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	parts := make([]string, 0, len(names))
	for _, name := range names {
		for _, v := range q[name] {
			parts = append(parts, name+":"+v)
		}
	}
	return strings.Join(parts, "-")
}

// PathKey keys on the request path, ignoring the query string.
func PathKey(r *http.Request) string {
	return r.URL.EscapedPath()
}

// RequestKey keys on path plus sorted query, the safest default when one
// middleware instance wraps multiple routes.
func RequestKey(r *http.Request) string {
	return PathKey(r) + "?" + QueryParamsKey(r)
}

// HashKey collapses an arbitrary key to a short fixed-length token. Long
// storage keys cost memory and bandwidth on every operation; the 128-bit
// prefix keeps collisions out of practical reach.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// composeKey builds the final storage key. Versioned concrete keys sit inside
// the hashed material, which is what makes a version bump reroute every
// subsequent request to a fresh entry.
func composeKey(prefix string, versioned []string, base string) string {
	return HashKey(prefix + ":" + strings.Join(versioned, ",") + ":" + base)
}
