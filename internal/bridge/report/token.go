package report

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"
)

// expiryMargin is subtracted from token lifetimes so a token is never used
// right at its expiry.
const expiryMargin = time.Minute

// fetchTimeout bounds a shared token fetch, which outlives any single caller.
const fetchTimeout = 30 * time.Second

type cachedToken struct {
	value  string
	expiry time.Time
}

// fetchFunc obtains a fresh token and its lifetime.
type fetchFunc func(ctx context.Context) (string, time.Duration, error)

// tokenCache caches bearer tokens by key. Concurrent misses for the same key
// share one fetch.
type tokenCache struct {
	clock clock.PassiveClock

	mu     sync.Mutex
	tokens map[string]cachedToken
	group  singleflight.Group
}

func newTokenCache(c clock.PassiveClock) *tokenCache {
	return &tokenCache{
		clock:  c,
		tokens: make(map[string]cachedToken),
	}
}

func (c *tokenCache) Get(ctx context.Context, key string, fetch fetchFunc) (string, error) {
	c.mu.Lock()
	t, ok := c.tokens[key]
	c.mu.Unlock()
	if ok && c.clock.Now().Before(t.expiry) {
		return t.value, nil
	}

	// The fetch is shared, so it must not die with the first caller's context.
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		value, ttl, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		lifetime := ttl - expiryMargin
		if lifetime <= 0 {
			lifetime = ttl / 2
		}
		c.mu.Lock()
		c.tokens[key] = cachedToken{value: value, expiry: c.clock.Now().Add(lifetime)}
		c.mu.Unlock()
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *tokenCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, key)
}
