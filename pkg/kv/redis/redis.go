// Package redis is a kv.Store backed by Redis. Windowed counters are
// incremented by a Lua script so the increment and the expiry of a fresh
// window happen in one round trip and one atomic step.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
	"github.com/redis/go-redis/v9"
)

var _ kv.Store = (*Store)(nil)

// incrWindow returns {count, pttl}. A counter left without a TTL (for
// example after a crash between INCR and PEXPIRE on an older deployment)
// gets one assigned so it cannot block an identity forever.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// Store implements kv.Store on a redis.UniversalClient.
type Store struct {
	rdb       redis.UniversalClient
	prefix    string
	scanCount int64
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key under prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = strings.Trim(prefix, ":") }
}

// WithScanCount sets the SCAN batch hint used by prefix operations.
func WithScanCount(n int64) Option {
	return func(s *Store) { s.scanCount = n }
}

// New wraps rdb. The caller keeps ownership of rdb unless Close is called.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:       rdb,
		prefix:    "aigw",
		scanCount: 500,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) counterKey(key string) string { return s.prefix + ":ctr:" + key }
func (s *Store) valueKey(key string) string   { return s.prefix + ":val:" + key }

func wrap(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %w", op, kv.ErrUnavailable, err)
}

// IncrWindow implements kv.Store.
func (s *Store) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	vals, err := incrWindow.Run(ctx, s.rdb, []string{s.counterKey(key)}, ms).Int64Slice()
	if err != nil {
		return 0, 0, wrap("incr window", err)
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("redis incr window: unexpected reply %v", vals)
	}
	return vals[0], time.Duration(vals[1]) * time.Millisecond, nil
}

// Counter implements kv.Store.
func (s *Store) Counter(ctx context.Context, key string) (int64, time.Duration, error) {
	k := s.counterKey(key)
	pipe := s.rdb.Pipeline()
	getCmd := pipe.Get(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, wrap("counter", err)
	}

	n, err := getCmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, wrap("counter", err)
	}
	ttl, err := ttlCmd.Result()
	if err != nil || ttl < 0 {
		ttl = 0
	}
	return n, ttl, nil
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.valueKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get", err)
	}
	return b, true, nil
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.valueKey(key), value, ttl).Err(); err != nil {
		return wrap("set", err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.counterKey(key), s.valueKey(key)).Err(); err != nil {
		return wrap("del", err)
	}
	return nil
}

// DeletePrefix implements kv.Store.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var total int64
	err := s.scan(ctx, prefix, func(keys []string) error {
		n, err := s.rdb.Del(ctx, keys...).Result()
		total += n
		return err
	})
	if err != nil {
		return total, wrap("delete prefix", err)
	}
	return total, nil
}

// CountPrefix implements kv.Store.
func (s *Store) CountPrefix(ctx context.Context, prefix string) (int64, error) {
	var total int64
	err := s.scan(ctx, prefix, func(keys []string) error {
		total += int64(len(keys))
		return nil
	})
	if err != nil {
		return 0, wrap("count prefix", err)
	}
	return total, nil
}

func (s *Store) scan(ctx context.Context, prefix string, fn func([]string) error) error {
	match := s.valueKey(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, s.scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping implements kv.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return wrap("ping", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
