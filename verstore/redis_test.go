package verstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "pages"), mr
}

func TestRedisAbsentReadsAsOne(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	v, err := s.Version(ctx, "products")
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("absent counter should read 1, got %d", v)
	}
}

func TestRedisBumpSequence(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	v, err := s.Bump(ctx, "products", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Fatalf("first bump should initialize to 2, got %d", v)
	}

	v, err = s.Bump(ctx, "products", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Fatalf("second bump should yield 3, got %d", v)
	}

	got, err := s.Version(ctx, "products")
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Fatalf("Version after bumps: got %d want 3", got)
	}
}

func TestRedisBumpRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	if _, err := s.Bump(ctx, "catalog", time.Hour); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("ver:pages:catalog"); ttl <= 0 {
		t.Fatalf("counter should carry a TTL, got %v", ttl)
	}
}

func TestRedisCounterExpiryResetsToOne(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	if _, err := s.Bump(ctx, "flash", time.Minute); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	v, err := s.Version(ctx, "flash")
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("expired counter should read 1, got %d", v)
	}
}

func TestRedisNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewRedis(client, "a")
	b := NewRedis(client, "b")

	if _, err := a.Bump(ctx, "tag", time.Hour); err != nil {
		t.Fatal(err)
	}
	v, err := b.Version(ctx, "tag")
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("namespaces should not share counters, got %d", v)
	}
}

func TestRedisBumpUnavailableSurfacesError(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedis(client, "pages")

	mr.Close()
	if _, err := s.Bump(ctx, "products", time.Hour); err == nil {
		t.Fatal("bump against a dead server must surface an error")
	}
}
