package authn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func countingJWKSServer(t *testing.T, keysJSON []byte, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(keysJSON)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestKeyCache_CachesWithinTTL(t *testing.T) {
	_, _, jwks := genRSA(t)
	var hits atomic.Int64
	srv := countingJWKSServer(t, jwks, &hits)

	now := time.Now()
	cache := NewKeyCache(
		WithKeyTTL(15*time.Minute),
		WithKeyClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cache.Keyfunc(ctx, srv.URL); err != nil {
			t.Fatalf("keyfunc: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("fetches within TTL = %d, want 1", got)
	}
}

func TestKeyCache_RefetchesAfterTTL(t *testing.T) {
	_, _, jwks := genRSA(t)
	var hits atomic.Int64
	srv := countingJWKSServer(t, jwks, &hits)

	now := time.Now()
	cache := NewKeyCache(
		WithKeyTTL(15*time.Minute),
		WithKeyClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	if _, err := cache.Keyfunc(ctx, srv.URL); err != nil {
		t.Fatalf("keyfunc: %v", err)
	}
	now = now.Add(16 * time.Minute)
	if _, err := cache.Keyfunc(ctx, srv.URL); err != nil {
		t.Fatalf("keyfunc after TTL: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestKeyCache_FailsClosedOnFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cache := NewKeyCache()
	_, err := cache.Keyfunc(context.Background(), srv.URL)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestKeyCache_FailsClosedOnUnreachableEndpoint(t *testing.T) {
	cache := NewKeyCache(WithFetchTimeout(250 * time.Millisecond))
	_, err := cache.Keyfunc(context.Background(), "http://127.0.0.1:1/jwks.json")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestKeyCache_FailsClosedOnGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(srv.Close)

	cache := NewKeyCache()
	_, err := cache.Keyfunc(context.Background(), srv.URL)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

// A stale entry stays in the map after a failed refresh attempt, but the
// failure itself still rejects the lookup; the cache never silently serves a
// key set it could not refresh within its trust window.
func TestKeyCache_StaleEntryDoesNotMaskFetchFailure(t *testing.T) {
	_, _, jwks := genRSA(t)
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(jwks)
	}))
	t.Cleanup(srv.Close)

	now := time.Now()
	cache := NewKeyCache(
		WithKeyTTL(time.Minute),
		WithKeyClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	if _, err := cache.Keyfunc(ctx, srv.URL); err != nil {
		t.Fatalf("initial fetch: %v", err)
	}

	now = now.Add(2 * time.Minute)
	fail.Store(true)
	if _, err := cache.Keyfunc(ctx, srv.URL); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}
