package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultKeyTTL       = 15 * time.Minute
	defaultFetchTimeout = 5 * time.Second
	maxJWKSBytes        = 1 << 20
)

type keyEntry struct {
	kf        keyfunc.Keyfunc
	fetchedAt time.Time
}

// KeyCache fetches JWKS documents and caches the derived verification
// keyfuncs for a bounded TTL, keyed by JWKS URL.
//
// Concurrent requests that miss the cache may each trigger a fetch; this is
// deliberately not deduplicated. Key material is immutable within its
// validity window, so a redundant fetch is harmless and the cache stays free
// of cross-request locking beyond the map itself.
type KeyCache struct {
	ttl     time.Duration
	timeout time.Duration
	client  *http.Client
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]keyEntry
}

// KeyCacheOption configures a KeyCache.
type KeyCacheOption func(*KeyCache)

// WithKeyTTL bounds how long a fetched key set is trusted.
func WithKeyTTL(ttl time.Duration) KeyCacheOption {
	return func(c *KeyCache) { c.ttl = ttl }
}

// WithFetchTimeout bounds the JWKS fetch. On timeout the lookup fails and
// the request is rejected; an unreachable key endpoint never grants access.
func WithFetchTimeout(d time.Duration) KeyCacheOption {
	return func(c *KeyCache) { c.timeout = d }
}

// WithKeyClock injects the time source used for TTL decisions.
func WithKeyClock(now func() time.Time) KeyCacheOption {
	return func(c *KeyCache) { c.now = now }
}

// WithHTTPClient overrides the HTTP client used to fetch key sets.
func WithHTTPClient(client *http.Client) KeyCacheOption {
	return func(c *KeyCache) { c.client = client }
}

// NewKeyCache builds an empty cache with the given options applied.
func NewKeyCache(opts ...KeyCacheOption) *KeyCache {
	c := &KeyCache{
		ttl:     defaultKeyTTL,
		timeout: defaultFetchTimeout,
		client:  http.DefaultClient,
		now:     time.Now,
		entries: make(map[string]keyEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Keyfunc returns a verification keyfunc for the given JWKS URL, fetching
// the key set if the cached copy is absent or stale.
func (c *KeyCache) Keyfunc(ctx context.Context, jwksURL string) (jwt.Keyfunc, error) {
	c.mu.RLock()
	entry, ok := c.entries[jwksURL]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.kf.Keyfunc, nil
	}

	kf, err := c.fetch(ctx, jwksURL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[jwksURL] = keyEntry{kf: kf, fetchedAt: c.now()}
	c.mu.Unlock()
	return kf.Keyfunc, nil
}

func (c *KeyCache) fetch(ctx context.Context, jwksURL string) (keyfunc.Keyfunc, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build jwks request: %v", ErrUpstreamUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch jwks: %v", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: jwks endpoint returned %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read jwks: %v", ErrUpstreamUnavailable, err)
	}
	kf, err := keyfunc.NewJWKSetJSON(json.RawMessage(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse jwks: %v", ErrUpstreamUnavailable, err)
	}
	return kf, nil
}
