// Package cache is a content-addressed response cache. Inputs are normalized
// and hashed into short fingerprints; values are stored with an absolute
// expiry that is checked on every lookup.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/clock"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

const (
	// DefaultTTL is the entry lifetime used when none is given.
	DefaultTTL = time.Hour
	// DefaultMaxInputChars caps text before it is fingerprinted.
	DefaultMaxInputChars = 8000

	keyPrefix = "cache:"
	// Backend expiry trails the entry's own expiry so that the boundary is
	// always decided by the cache's clock, not the store's.
	expiryGrace = time.Second
)

// Cache memoizes generation results in a kv.Store.
type Cache struct {
	store    kv.Store
	clock    clock.Clock
	ttl      time.Duration
	maxInput int
	hits     atomic.Int64
	misses   atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the default entry lifetime.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithMaxInputChars sets the truncation cap applied before fingerprinting.
func WithMaxInputChars(n int) Option {
	return func(c *Cache) { c.maxInput = n }
}

// WithClock sets the clock used for expiry.
func WithClock(cl clock.Clock) Option {
	return func(c *Cache) { c.clock = cl }
}

// New creates a Cache over store.
func New(store kv.Store, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		clock:    clock.Real(),
		ttl:      DefaultTTL,
		maxInput: DefaultMaxInputChars,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	return c
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// MaxInputChars returns the truncation cap.
func (c *Cache) MaxInputChars() int { return c.maxInput }

// Fingerprint computes the cache key for input using the cache's cap.
func (c *Cache) Fingerprint(input any) (string, error) {
	return Fingerprint(input, c.maxInput)
}

// Lookup returns the value stored under fingerprint if it has not expired.
// Store failures are reported as misses together with an error wrapping
// models.ErrStoreUnavailable.
func (c *Cache) Lookup(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	data, ok, err := c.store.Get(ctx, keyPrefix+fingerprint)
	if err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("cache lookup %s: %w: %w", fingerprint, models.ErrStoreUnavailable, err)
	}
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Fingerprint != fingerprint {
		c.misses.Add(1)
		return nil, false, nil
	}
	if c.clock.Now().After(entry.ExpiresAt) {
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	return entry.Value, true, nil
}

// Store saves value under fingerprint for ttl (the cache default when
// ttl <= 0). Concurrent stores for one fingerprint are last-writer-wins.
func (c *Cache) Store(ctx context.Context, fingerprint string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	entry := models.CacheEntry{
		Fingerprint: fingerprint,
		Value:       value,
		ExpiresAt:   c.clock.Now().Add(ttl),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache store %s: %w", fingerprint, err)
	}
	if err := c.store.Set(ctx, keyPrefix+fingerprint, data, ttl+expiryGrace); err != nil {
		return fmt.Errorf("cache store %s: %w: %w", fingerprint, models.ErrStoreUnavailable, err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	n, err := c.store.CountPrefix(ctx, keyPrefix)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w: %w", models.ErrStoreUnavailable, err)
	}
	return models.CacheStats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes every cache entry and returns how many were removed.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	n, err := c.store.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return n, fmt.Errorf("cache clear: %w: %w", models.ErrStoreUnavailable, err)
	}
	return n, nil
}
