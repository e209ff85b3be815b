// Package memory is an in-process kv.Store driven by an injectable clock.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/clock"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
)

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Sweeper = (*Store)(nil)
)

// Store keeps counters and values in maps guarded by a single mutex.
type Store struct {
	mu       sync.Mutex
	counters map[string]*counter
	values   map[string]*value
	clock    clock.Clock
	down     bool
}

type counter struct {
	count     int64
	expiresAt time.Time
}

type value struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for expiry.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		counters: make(map[string]*counter),
		values:   make(map[string]*value),
		clock:    clock.Real(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDown makes every operation fail with kv.ErrUnavailable until called
// again with false. Used to exercise failure policies.
func (s *Store) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func expired(at, now time.Time) bool {
	return !at.IsZero() && !now.Before(at)
}

// IncrWindow implements kv.Store.
func (s *Store) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return 0, 0, kv.ErrUnavailable
	}

	c, ok := s.counters[key]
	if !ok || expired(c.expiresAt, now) {
		c = &counter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.expiresAt.Sub(now), nil
}

// Counter implements kv.Store.
func (s *Store) Counter(_ context.Context, key string) (int64, time.Duration, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return 0, 0, kv.ErrUnavailable
	}

	c, ok := s.counters[key]
	if !ok || expired(c.expiresAt, now) {
		return 0, 0, nil
	}
	return c.count, c.expiresAt.Sub(now), nil
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, false, kv.ErrUnavailable
	}

	v, ok := s.values[key]
	if !ok || expired(v.expiresAt, now) {
		return nil, false, nil
	}
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out, true, nil
}

// Set implements kv.Store.
func (s *Store) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	v := &value{data: append([]byte(nil), data...)}
	if ttl > 0 {
		v.expiresAt = s.clock.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return kv.ErrUnavailable
	}
	s.values[key] = v
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return kv.ErrUnavailable
	}
	delete(s.counters, key)
	delete(s.values, key)
	return nil
}

// DeletePrefix implements kv.Store.
func (s *Store) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return 0, kv.ErrUnavailable
	}
	var n int64
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			delete(s.values, k)
			n++
		}
	}
	return n, nil
}

// CountPrefix implements kv.Store.
func (s *Store) CountPrefix(_ context.Context, prefix string) (int64, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return 0, kv.ErrUnavailable
	}
	var n int64
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) && !expired(v.expiresAt, now) {
			n++
		}
	}
	return n, nil
}

// Sweep drops expired counters and values.
func (s *Store) Sweep(_ context.Context) (int64, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, c := range s.counters {
		if expired(c.expiresAt, now) {
			delete(s.counters, k)
			n++
		}
	}
	for k, v := range s.values {
		if expired(v.expiresAt, now) {
			delete(s.values, k)
			n++
		}
	}
	return n, nil
}

// Ping implements kv.Store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return kv.ErrUnavailable
	}
	return nil
}

// Close implements kv.Store.
func (s *Store) Close() error { return nil }
