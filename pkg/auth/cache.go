package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// DefaultCacheTTL bounds how long an accepted credential is remembered
const DefaultCacheTTL = 5 * time.Minute

// CachedAuthenticator remembers accepted credentials so a slow
// authenticator runs once per key and TTL. Rejections are not cached.
type CachedAuthenticator struct {
	next  Authenticator
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedAuthenticator wraps next. A ttl of zero uses DefaultCacheTTL.
func NewCachedAuthenticator(next Authenticator, ttl time.Duration) (*CachedAuthenticator, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        100_000,
		MaxCost:            10_000,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("credential cache: %w", err)
	}
	return &CachedAuthenticator{next: next, cache: cache, ttl: ttl}, nil
}

// Authenticate implements Authenticator
func (c *CachedAuthenticator) Authenticate(ctx context.Context, credential string) (*Principal, error) {
	sum := sha256.Sum256([]byte(credential))
	key := hex.EncodeToString(sum[:])
	if v, ok := c.cache.Get(key); ok {
		if p, ok := v.(*Principal); ok {
			return p, nil
		}
	}

	p, err := c.next.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, p, 1, c.ttl)
	c.cache.Wait()
	return p, nil
}

// Close releases the cache
func (c *CachedAuthenticator) Close() {
	c.cache.Close()
}
