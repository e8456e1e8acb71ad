package redis

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s, err := New(Config{Client: client, CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, mr
}

func TestNewNilClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("err = %v, want ErrNilClient", err)
	}
}

func TestRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get = %q, %v, %v", b, ok, err)
	}

	ok, err = s.Delete(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "k"); ok {
		t.Fatal("second delete reported removal")
	}
}

func TestTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("entry outlived its TTL")
	}
}

func TestSetOperations(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	for _, m := range []string{"a", "b", "a"} {
		if err := s.AddToSet(ctx, "tag", m, time.Hour); err != nil {
			t.Fatalf("AddToSet: %v", err)
		}
	}
	members, err := s.SetMembers(ctx, "tag")
	if err != nil {
		t.Fatalf("SetMembers: %v", err)
	}
	sort.Strings(members)
	if len(members) != 2 || members[0] != "a" || members[1] != "b" {
		t.Fatalf("members = %v", members)
	}
	if ttl := mr.TTL("tag"); ttl != time.Hour {
		t.Fatalf("set ttl = %v", ttl)
	}

	if err := s.RemoveFromSet(ctx, "tag", "a"); err != nil {
		t.Fatalf("RemoveFromSet: %v", err)
	}
	members, _ = s.SetMembers(ctx, "tag")
	if len(members) != 1 || members[0] != "b" {
		t.Fatalf("members after remove = %v", members)
	}

	if err := s.DeleteSet(ctx, "tag"); err != nil {
		t.Fatalf("DeleteSet: %v", err)
	}
	members, err = s.SetMembers(ctx, "tag")
	if err != nil || len(members) != 0 {
		t.Fatalf("members after delete = %v, %v", members, err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
