package backend

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// fakeBackend records calls and serves canned results.
type fakeBackend struct {
	entries map[string]*Entry
	err     error

	version     uint64
	versioned   bool
	invalidated []string
	prepared    int
	closed      bool
}

var _ Backend = (*fakeBackend)(nil)

func newFake() *fakeBackend {
	return &fakeBackend{entries: map[string]*Entry{}}
}

func (f *fakeBackend) Get(_ context.Context, key string) (*Entry, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	e, ok := f.entries[key]
	return e, ok, nil
}

func (f *fakeBackend) Set(_ context.Context, e *Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries[e.Key] = e
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.entries[key]
	delete(f.entries, key)
	return ok, nil
}

func (f *fakeBackend) InvalidateSurrogate(_ context.Context, tag string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.invalidated = append(f.invalidated, tag)
	return 1, nil
}

func (f *fakeBackend) PrepareResponse(http.Header, []string) { f.prepared++ }

func (f *fakeBackend) Version(_ context.Context, _ string, _ time.Duration) (uint64, error) {
	if !f.versioned {
		return 0, ErrVersioningUnsupported
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.version, nil
}

func (f *fakeBackend) BumpVersion(_ context.Context, _ string, _ time.Duration) (uint64, error) {
	if !f.versioned {
		return 0, ErrVersioningUnsupported
	}
	if f.err != nil {
		return 0, f.err
	}
	f.version++
	return f.version, nil
}

func (f *fakeBackend) Close(context.Context) error {
	f.closed = true
	return f.err
}

func TestNewCompositeValidation(t *testing.T) {
	if _, err := NewComposite(); err == nil {
		t.Fatal("expected error for empty member list")
	}
}

func TestCompositeGetFirstHit(t *testing.T) {
	first, second := newFake(), newFake()
	first.entries["k"] = &Entry{Key: "k", Body: []byte("first")}
	second.entries["k"] = &Entry{Key: "k", Body: []byte("second")}

	c, err := NewComposite(first, second)
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	e, ok, err := c.Get(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	if string(e.Body) != "first" {
		t.Fatalf("served %q, want first member's entry", e.Body)
	}
}

func TestCompositeGetSkipsFailingMember(t *testing.T) {
	broken, healthy := newFake(), newFake()
	broken.err = errors.New("down")
	healthy.entries["k"] = &Entry{Key: "k", Body: []byte("ok")}

	c, _ := NewComposite(broken, healthy)
	e, ok, err := c.Get(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v, want hit from healthy member", ok, err)
	}
	if string(e.Body) != "ok" {
		t.Fatalf("Body = %q", e.Body)
	}

	// With no hit anywhere, the member failure surfaces.
	_, ok, err = c.Get(context.Background(), "absent")
	if ok {
		t.Fatal("unexpected hit")
	}
	var ce *CompositeError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CompositeError", err)
	}
	var me *MemberError
	if !errors.As(err, &me) || me.Index != 0 {
		t.Fatalf("member error = %+v, want index 0", me)
	}
}

func TestCompositeSetReachesAllMembers(t *testing.T) {
	broken, healthy := newFake(), newFake()
	broken.err = errors.New("down")

	c, _ := NewComposite(broken, healthy)
	err := c.Set(context.Background(), &Entry{Key: "k", Body: []byte("v")})
	if err == nil {
		t.Fatal("expected aggregated error from broken member")
	}
	if _, ok := healthy.entries["k"]; !ok {
		t.Fatal("healthy member was skipped after the broken one failed")
	}
}

func TestCompositeInvalidateSums(t *testing.T) {
	a, b := newFake(), newFake()
	c, _ := NewComposite(a, b)

	n, err := c.InvalidateSurrogate(context.Background(), "products")
	if err != nil {
		t.Fatalf("InvalidateSurrogate: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if len(a.invalidated) != 1 || len(b.invalidated) != 1 {
		t.Fatal("not every member saw the purge")
	}
}

func TestCompositeInvalidateContinuesPastFailure(t *testing.T) {
	broken, healthy := newFake(), newFake()
	broken.err = errors.New("down")

	c, _ := NewComposite(broken, healthy)
	n, err := c.InvalidateSurrogate(context.Background(), "products")
	if err == nil {
		t.Fatal("expected error from broken member")
	}
	if n != 1 {
		t.Fatalf("count = %d, want healthy member's 1", n)
	}
	if len(healthy.invalidated) != 1 {
		t.Fatal("healthy member was not attempted")
	}
}

func TestCompositePrepareResponseChains(t *testing.T) {
	a, b := newFake(), newFake()
	c, _ := NewComposite(a, b)
	c.PrepareResponse(http.Header{}, []string{"t"})
	if a.prepared != 1 || b.prepared != 1 {
		t.Fatalf("prepared = %d, %d, want 1, 1", a.prepared, b.prepared)
	}
}

func TestCompositeVersioning(t *testing.T) {
	unversioned, versioned := newFake(), newFake()
	versioned.versioned = true
	versioned.version = 2

	c, _ := NewComposite(unversioned, versioned)
	ctx := context.Background()

	v, err := c.Version(ctx, "catalog", time.Hour)
	if err != nil || v != 2 {
		t.Fatalf("Version = %d, %v, want 2 from first supporting member", v, err)
	}
	v, err = c.BumpVersion(ctx, "catalog", time.Hour)
	if err != nil || v != 3 {
		t.Fatalf("BumpVersion = %d, %v, want 3", v, err)
	}
}

func TestCompositeVersioningUnsupported(t *testing.T) {
	c, _ := NewComposite(newFake(), newFake())
	ctx := context.Background()

	if _, err := c.Version(ctx, "catalog", time.Hour); !errors.Is(err, ErrVersioningUnsupported) {
		t.Fatalf("Version err = %v", err)
	}
	if _, err := c.BumpVersion(ctx, "catalog", time.Hour); !errors.Is(err, ErrVersioningUnsupported) {
		t.Fatalf("BumpVersion err = %v", err)
	}
}

func TestCompositeClose(t *testing.T) {
	a, b := newFake(), newFake()
	c, _ := NewComposite(a, b)
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("not all members closed")
	}
}
