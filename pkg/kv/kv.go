// Package kv defines the shared key-value store the quota ledger and response
// cache are built on. Backends live in subpackages: memory (single process,
// tests), redis (shared, production) and sqlite (single node).
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by stores that cannot serve a request.
var ErrUnavailable = errors.New("kv: store unavailable")

// Store is a key-value store with an atomic windowed counter.
//
// Counters and values live in separate namespaces; a key used with
// IncrWindow is not visible to Get.
type Store interface {
	// IncrWindow atomically increments the counter at key and returns the new
	// count together with the time left in the current window. The increment
	// that opens a window (count == 1) sets the window to expire after window.
	// Once a window has expired the next increment starts a new one.
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	// Counter reads the counter at key without modifying it. An absent or
	// expired counter reads as zero.
	Counter(ctx context.Context, key string) (count int64, ttl time.Duration, err error)
	// Get returns the value stored at key, if present and not expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value at key. A ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key from both namespaces.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every value whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	// CountPrefix counts live values whose key starts with prefix.
	CountPrefix(ctx context.Context, prefix string) (int64, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// Sweeper is implemented by stores that need expired entries removed
// explicitly.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// StartJanitor sweeps s every interval until ctx is done.
func StartJanitor(ctx context.Context, s Sweeper, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = s.Sweep(ctx)
			}
		}
	}()
}
