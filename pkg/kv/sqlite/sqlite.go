// Package sqlite is a kv.Store backed by SQLite, for single-node deployments
// and for the CLI to inspect a gateway's state offline.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/clock"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
)

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Sweeper = (*Store)(nil)
)

const createTables = `
CREATE TABLE IF NOT EXISTS kv_counters (
	key TEXT PRIMARY KEY,
	count INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS kv_values (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_kv_values_expires ON kv_values(expires_at);
`

// The whole read-modify-write happens inside one statement. SET expressions
// see the row as it was before the update.
const upsertCounter = `
INSERT INTO kv_counters (key, count, expires_at) VALUES (?, 1, ?)
ON CONFLICT(key) DO UPDATE SET
	count = CASE WHEN kv_counters.expires_at <= ? THEN 1 ELSE kv_counters.count + 1 END,
	expires_at = CASE WHEN kv_counters.expires_at <= ? THEN excluded.expires_at ELSE kv_counters.expires_at END
RETURNING count, expires_at
`

// Store implements kv.Store on a SQLite database.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for expiry.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New opens (or creates) the database at dbPath.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open kv db: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY
	// churn under concurrent increments.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate kv db: %w", err)
	}

	s := &Store{db: db, clock: clock.Real()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func wrap(op string, err error) error {
	return fmt.Errorf("sqlite %s: %w: %w", op, kv.ErrUnavailable, err)
}

// IncrWindow implements kv.Store.
func (s *Store) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.clock.Now().UnixNano()
	var count, expiresAt int64
	err := s.db.QueryRowContext(ctx, upsertCounter, key, now+int64(window), now, now).Scan(&count, &expiresAt)
	if err != nil {
		return 0, 0, wrap("incr window", err)
	}
	return count, time.Duration(expiresAt - now), nil
}

// Counter implements kv.Store.
func (s *Store) Counter(ctx context.Context, key string) (int64, time.Duration, error) {
	now := s.clock.Now().UnixNano()
	var count, expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count, expires_at FROM kv_counters WHERE key = ? AND expires_at > ?`, key, now,
	).Scan(&count, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, wrap("counter", err)
	}
	return count, time.Duration(expiresAt - now), nil
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	now := s.clock.Now().UnixNano()
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_values WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`, key, now,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get", err)
	}
	return value, true, nil
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl).UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv_values (key, value, expires_at) VALUES (?, ?, ?)`,
		key, value, expiresAt,
	)
	if err != nil {
		return wrap("set", err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_counters WHERE key = ?`, key); err != nil {
		return wrap("delete", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_values WHERE key = ?`, key); err != nil {
		return wrap("delete", err)
	}
	return nil
}

// DeletePrefix implements kv.Store.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_values WHERE substr(key, 1, length(?)) = ?`, prefix, prefix,
	)
	if err != nil {
		return 0, wrap("delete prefix", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountPrefix implements kv.Store.
func (s *Store) CountPrefix(ctx context.Context, prefix string) (int64, error) {
	now := s.clock.Now().UnixNano()
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kv_values WHERE substr(key, 1, length(?)) = ? AND (expires_at = 0 OR expires_at > ?)`,
		prefix, prefix, now,
	).Scan(&n)
	if err != nil {
		return 0, wrap("count prefix", err)
	}
	return n, nil
}

// Sweep removes expired counters and values.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	now := s.clock.Now().UnixNano()
	var total int64
	for _, q := range []string{
		`DELETE FROM kv_counters WHERE expires_at <= ?`,
		`DELETE FROM kv_values WHERE expires_at != 0 AND expires_at <= ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, now)
		if err != nil {
			return total, wrap("sweep", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Ping implements kv.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrap("ping", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
