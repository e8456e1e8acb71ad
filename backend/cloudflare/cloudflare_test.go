package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/tagcache/backend"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{APIToken: "t"}); err == nil {
		t.Fatal("expected error for missing zone id")
	}
	if _, err := New(Config{ZoneID: "z"}); err == nil {
		t.Fatal("expected error for missing api token")
	}
}

func TestInvalidateSurrogate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody struct {
		Tags []string `json:"tags"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := New(Config{ZoneID: "zone1", APIToken: "secret", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n, err := b.InvalidateSurrogate(context.Background(), "products")
	if err != nil {
		t.Fatalf("InvalidateSurrogate: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if gotPath != "/zones/zone1/purge_cache" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(gotBody.Tags) != 1 || gotBody.Tags[0] != "products" {
		t.Fatalf("tags = %v", gotBody.Tags)
	}
}

func TestInvalidateSurrogateRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, _ := New(Config{ZoneID: "z", APIToken: "t", Endpoint: srv.URL, MaxRetries: 2})
	n, err := b.InvalidateSurrogate(context.Background(), "t")
	if err != nil {
		t.Fatalf("InvalidateSurrogate: %v", err)
	}
	if n != 1 || calls.Load() != 2 {
		t.Fatalf("n=%d calls=%d, want 1 and 2", n, calls.Load())
	}
}

func TestInvalidateSurrogateAuthFailureNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	b, _ := New(Config{ZoneID: "z", APIToken: "bad", Endpoint: srv.URL, MaxRetries: 5})
	_, err := b.InvalidateSurrogate(context.Background(), "t")
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, auth failures must not be retried", calls.Load())
	}
}

func TestPrepareResponse(t *testing.T) {
	b, _ := New(Config{ZoneID: "z", APIToken: "t"})

	h := http.Header{}
	b.PrepareResponse(h, []string{"products", "product-1"})
	if got := h.Get("Cache-Tag"); got != "products,product-1" {
		t.Fatalf("Cache-Tag = %q", got)
	}

	h = http.Header{}
	b.PrepareResponse(h, nil)
	if _, ok := h["Cache-Tag"]; ok {
		t.Fatal("header set with no keys")
	}
}

func TestPassthroughOperations(t *testing.T) {
	b, _ := New(Config{ZoneID: "z", APIToken: "t"})
	ctx := context.Background()

	if _, ok, err := b.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Get = %v, %v, want miss", ok, err)
	}
	if err := b.Set(ctx, &backend.Entry{Key: "k"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := b.Version(ctx, "n", 0); !errors.Is(err, backend.ErrVersioningUnsupported) {
		t.Fatalf("Version err = %v", err)
	}
	if _, err := b.BumpVersion(ctx, "n", 0); !errors.Is(err, backend.ErrVersioningUnsupported) {
		t.Fatalf("BumpVersion err = %v", err)
	}
}
