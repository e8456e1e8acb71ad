// Package cloudflare purges tagged content through the Cloudflare zone
// purge API. PrepareResponse stamps the Cache-Tag header (comma-separated,
// Cloudflare's convention) onto outgoing responses; InvalidateSurrogate
// issues one purge_cache call per tag, authenticated with a bearer token.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/unkn0wn-root/tagcache/backend"
	"github.com/unkn0wn-root/tagcache/surrogate"
)

const DefaultEndpoint = "https://api.cloudflare.com/client/v4"

type Config struct {
	// ZoneID and APIToken are required.
	ZoneID   string
	APIToken string

	// Endpoint overrides the API base URL (tests, staging).
	Endpoint string

	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client

	// MaxRetries caps purge retries on transient failures; 0 => 3.
	MaxRetries uint64
}

type Backend struct {
	zoneID     string
	apiToken   string
	endpoint   string
	client     *http.Client
	maxRetries uint64
}

var _ backend.Backend = (*Backend)(nil)

func New(cfg Config) (*Backend, error) {
	if cfg.ZoneID == "" {
		return nil, errors.New("cloudflare: zone id is required")
	}
	if cfg.APIToken == "" {
		return nil, errors.New("cloudflare: api token is required")
	}

	b := &Backend{
		zoneID:     cfg.ZoneID,
		apiToken:   cfg.APIToken,
		endpoint:   cfg.Endpoint,
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

func (b *Backend) Get(context.Context, string) (*backend.Entry, bool, error) {
	return nil, false, nil
}

func (b *Backend) Set(context.Context, *backend.Entry) error { return nil }

func (b *Backend) Delete(context.Context, string) (bool, error) { return false, nil }

// InvalidateSurrogate issues POST /zones/{zone}/purge_cache with the tag in
// the request body. Returns 1 once the purge is accepted.
func (b *Backend) InvalidateSurrogate(ctx context.Context, tag string) (int, error) {
	purgeURL := fmt.Sprintf("%s/zones/%s/purge_cache", b.endpoint, url.PathEscape(b.zoneID))

	body, err := json.Marshal(struct {
		Tags []string `json:"tags"`
	}{Tags: []string{tag}})
	if err != nil {
		return 0, err
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, purgeURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+b.apiToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("purge %q: status %d", tag, resp.StatusCode)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("purge %q: status %d", tag, resp.StatusCode))
		default:
			return fmt.Errorf("purge %q: status %d", tag, resp.StatusCode)
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), b.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return 0, backend.Unavailable("cloudflare purge", err)
	}
	return 1, nil
}

// PrepareResponse attaches the Cache-Tag header. Cloudflare delimits tags
// with commas, not spaces.
func (b *Backend) PrepareResponse(h http.Header, surrogateKeys []string) {
	valid := make([]string, 0, len(surrogateKeys))
	total := 0
	for _, k := range surrogateKeys {
		if len(k) > surrogate.MaxKeySize {
			continue
		}
		if total+len(k)+1 > surrogate.MaxHeaderSize {
			break
		}
		valid = append(valid, k)
		total += len(k) + 1
	}
	if len(valid) > 0 {
		h.Set("Cache-Tag", strings.Join(valid, ","))
	}
}

func (b *Backend) Version(context.Context, string, time.Duration) (uint64, error) {
	return 0, backend.ErrVersioningUnsupported
}

func (b *Backend) BumpVersion(context.Context, string, time.Duration) (uint64, error) {
	return 0, backend.ErrVersioningUnsupported
}

func (b *Backend) Close(context.Context) error { return nil }
