// Package fastly purges tagged content through the Fastly surrogate-key API.
// It keeps no local entries: PrepareResponse stamps the Surrogate-Key header
// (space-separated keys) onto outgoing responses so the edge records
// membership itself, and InvalidateSurrogate issues one purge call per tag.
// Pair it with a store backend in a composite so reads still have a local
// cache to hit.
package fastly

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/unkn0wn-root/tagcache/backend"
	"github.com/unkn0wn-root/tagcache/surrogate"
)

const DefaultEndpoint = "https://api.fastly.com"

type Config struct {
	// ServiceID and APIKey are required.
	ServiceID string
	APIKey    string

	// Endpoint overrides the API base URL (tests, staging).
	Endpoint string

	// SoftPurge marks content stale instead of evicting it, letting the edge
	// serve stale-while-revalidate.
	SoftPurge bool

	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client

	// MaxRetries caps purge retries on transient failures; 0 => 3.
	MaxRetries uint64
}

type Backend struct {
	serviceID  string
	apiKey     string
	endpoint   string
	soft       bool
	client     *http.Client
	maxRetries uint64
}

var _ backend.Backend = (*Backend)(nil)

func New(cfg Config) (*Backend, error) {
	if cfg.ServiceID == "" {
		return nil, errors.New("fastly: service id is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("fastly: api key is required")
	}

	b := &Backend{
		serviceID:  cfg.ServiceID,
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		soft:       cfg.SoftPurge,
		client:     cfg.HTTPClient,
		maxRetries: cfg.MaxRetries,
	}
	if b.endpoint == "" {
		b.endpoint = DefaultEndpoint
	}
	if b.client == nil {
		b.client = &http.Client{Timeout: 10 * time.Second}
	}
	if b.maxRetries == 0 {
		b.maxRetries = 3
	}
	return b, nil
}

// Get always misses; entries live at the edge, not locally.
func (b *Backend) Get(context.Context, string) (*backend.Entry, bool, error) {
	return nil, false, nil
}

// Set is a no-op; the edge caches off the headers PrepareResponse attached.
func (b *Backend) Set(context.Context, *backend.Entry) error { return nil }

// Delete is a no-op; per-URL purging is out of scope for a key-driven cache.
func (b *Backend) Delete(context.Context, string) (bool, error) { return false, nil }

// InvalidateSurrogate issues POST /service/{id}/purge/{tag}, retrying
// transient failures with exponential backoff. Returns 1 once the purge is
// accepted; Fastly does not report how many objects were dropped.
func (b *Backend) InvalidateSurrogate(ctx context.Context, tag string) (int, error) {
	purgeURL := fmt.Sprintf("%s/service/%s/purge/%s",
		b.endpoint, url.PathEscape(b.serviceID), url.PathEscape(tag))

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, purgeURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Fastly-Key", b.apiKey)
		req.Header.Set("Accept", "application/json")
		if b.soft {
			req.Header.Set("Fastly-Soft-Purge", "1")
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			// Auth/key problems do not heal on retry.
			return backoff.Permanent(fmt.Errorf("purge %q: status %d", tag, resp.StatusCode))
		default:
			return fmt.Errorf("purge %q: status %d", tag, resp.StatusCode)
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), b.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return 0, backend.Unavailable("fastly purge", err)
	}
	return 1, nil
}

// PrepareResponse attaches the Surrogate-Key header (space-separated) so the
// edge can associate the cached object with its tags.
func (b *Backend) PrepareResponse(h http.Header, surrogateKeys []string) {
	if v := surrogate.HeaderValue(surrogateKeys); v != "" {
		h.Set("Surrogate-Key", v)
	}
}

func (b *Backend) Version(context.Context, string, time.Duration) (uint64, error) {
	return 0, backend.ErrVersioningUnsupported
}

func (b *Backend) BumpVersion(context.Context, string, time.Duration) (uint64, error) {
	return 0, backend.ErrVersioningUnsupported
}

func (b *Backend) Close(context.Context) error { return nil }
