package tagcache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/unkn0wn-root/tagcache/backend"
	"github.com/unkn0wn-root/tagcache/surrogate"
)

type tagKind int

const (
	kindLiteral tagKind = iota
	kindDynamic
	kindVersioned
)

// Tag declares how a handler's responses are grouped for invalidation. The
// variant set is closed: construct with Literal, Dynamic, DynamicOne,
// Versioned or VersionedFunc.
type Tag struct {
	kind tagKind

	name   string
	many   func(*http.Request) []string
	nameFn func(*http.Request) string

	// counter TTL for versioned tags; 0 => backend default
	ttl time.Duration
}

// Literal tags every response with a fixed surrogate key.
func Literal(name string) Tag {
	return Tag{kind: kindLiteral, name: name}
}

// Dynamic computes surrogate keys per request. Empty strings are dropped; a
// panicking fn fails resolution for the whole request (served uncached).
func Dynamic(fn func(*http.Request) []string) Tag {
	return Tag{kind: kindDynamic, many: fn}
}

// DynamicOne is Dynamic for the single-key case.
func DynamicOne(fn func(*http.Request) string) Tag {
	return Tag{kind: kindDynamic, many: func(r *http.Request) []string {
		return []string{fn(r)}
	}}
}

// Versioned tags responses with "{name}:v{version}" where version is the
// tag's current counter. The version lands inside the storage key, so bumping
// the counter invalidates every tagged entry without touching the store.
func Versioned(name string, ttl time.Duration) Tag {
	return Tag{kind: kindVersioned, name: name, ttl: ttl}
}

// VersionedFunc is Versioned with the name computed per request.
func VersionedFunc(fn func(*http.Request) string, ttl time.Duration) Tag {
	return Tag{kind: kindVersioned, nameFn: fn, ttl: ttl}
}

// resolvedTags carries the two key classes a request's tags produce: plain
// keys go through the surrogate index, versioned keys only shape the storage
// key and response headers.
type resolvedTags struct {
	plain     []string
	versioned []string
}

// all returns both classes in declaration order, for header emission.
func (rt resolvedTags) all() []string {
	out := make([]string, 0, len(rt.plain)+len(rt.versioned))
	out = append(out, rt.plain...)
	return append(out, rt.versioned...)
}

// resolveTags turns declared tags into concrete surrogate keys against a
// backend, preserving declaration order and de-duplicating within each class.
// Dynamic callables run inside a recover; a panic resolves to a
// ResolutionError rather than taking the request down.
func resolveTags(ctx context.Context, r *http.Request, tags []Tag, b backend.Backend) (rt resolvedTags, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ResolutionError{Err: fmt.Errorf("tag callable panicked: %v", p)}
		}
	}()

	plain := surrogate.NewKeySet()
	versioned := surrogate.NewKeySet()

	for _, t := range tags {
		switch t.kind {
		case kindLiteral:
			plain.Add(t.name)
		case kindDynamic:
			plain.Add(t.many(r)...)
		case kindVersioned:
			name := t.name
			if t.nameFn != nil {
				name = t.nameFn(r)
			}
			name = surrogate.Normalize(name)
			if name == "" {
				continue
			}
			v, verr := b.Version(ctx, name, t.ttl)
			if verr != nil {
				return resolvedTags{}, &ResolutionError{Err: verr}
			}
			versioned.Add(fmt.Sprintf("%s:v%d", name, v))
		}
	}

	return resolvedTags{plain: plain.Keys(), versioned: versioned.Keys()}, nil
}
