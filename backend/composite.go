package backend

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Composite fans operations out to an ordered list of member backends,
// sequentially. The usual shape is a fast local/store member in front of a
// CDN purge member: reads come from the store, invalidations reach every
// configured target. One failing member never stops dispatch to the rest;
// failures are collected into a single CompositeError once all members have
// been attempted.
type Composite struct {
	members []Backend
}

var _ Backend = (*Composite)(nil)

func NewComposite(members ...Backend) (*Composite, error) {
	if len(members) == 0 {
		return nil, errors.New("tagcache: composite needs at least one member")
	}
	return &Composite{members: members}, nil
}

// Get returns the first hit found trying members in order. Erroring members
// are skipped; their failures only surface when no member hits.
func (c *Composite) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var errs []error
	for i, m := range c.members {
		entry, ok, err := m.Get(ctx, key)
		if err != nil {
			errs = append(errs, &MemberError{Index: i, Err: err})
			continue
		}
		if ok {
			return entry, true, nil
		}
	}
	return nil, false, compositeErr("get", errs)
}

func (c *Composite) Set(ctx context.Context, entry *Entry) error {
	var errs []error
	for i, m := range c.members {
		if err := m.Set(ctx, entry); err != nil {
			errs = append(errs, &MemberError{Index: i, Err: err})
		}
	}
	return compositeErr("set", errs)
}

func (c *Composite) Delete(ctx context.Context, key string) (bool, error) {
	removed := false
	var errs []error
	for i, m := range c.members {
		ok, err := m.Delete(ctx, key)
		if err != nil {
			errs = append(errs, &MemberError{Index: i, Err: err})
			continue
		}
		removed = removed || ok
	}
	return removed, compositeErr("delete", errs)
}

// InvalidateSurrogate sums removal counts across members, attempting every
// member even when earlier ones fail.
func (c *Composite) InvalidateSurrogate(ctx context.Context, tag string) (int, error) {
	total := 0
	var errs []error
	for i, m := range c.members {
		n, err := m.InvalidateSurrogate(ctx, tag)
		total += n
		if err != nil {
			errs = append(errs, &MemberError{Index: i, Err: err})
		}
	}
	return total, compositeErr("invalidate", errs)
}

func (c *Composite) PrepareResponse(h http.Header, surrogateKeys []string) {
	for _, m := range c.members {
		m.PrepareResponse(h, surrogateKeys)
	}
}

// Version resolves through the first member that supports versioning.
func (c *Composite) Version(ctx context.Context, name string, ttl time.Duration) (uint64, error) {
	for _, m := range c.members {
		v, err := m.Version(ctx, name, ttl)
		if errors.Is(err, ErrVersioningUnsupported) {
			continue
		}
		return v, err
	}
	return 0, ErrVersioningUnsupported
}

// BumpVersion bumps every member that supports versioning and reports the
// first member's new version, so the value callers see matches the member
// that Version reads from.
func (c *Composite) BumpVersion(ctx context.Context, name string, ttl time.Duration) (uint64, error) {
	var (
		version uint64
		bumped  bool
		errs    []error
	)
	for i, m := range c.members {
		v, err := m.BumpVersion(ctx, name, ttl)
		if errors.Is(err, ErrVersioningUnsupported) {
			continue
		}
		if err != nil {
			errs = append(errs, &MemberError{Index: i, Err: err})
			continue
		}
		if !bumped {
			version = v
			bumped = true
		}
	}
	if !bumped && len(errs) == 0 {
		return 0, ErrVersioningUnsupported
	}
	return version, compositeErr("bump", errs)
}

func (c *Composite) Close(ctx context.Context) error {
	var errs []error
	for i, m := range c.members {
		if err := m.Close(ctx); err != nil {
			errs = append(errs, &MemberError{Index: i, Err: err})
		}
	}
	return compositeErr("close", errs)
}
