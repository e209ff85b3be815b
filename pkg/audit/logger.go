// Package audit keeps a SQLite log of gateway outcomes: which feature was
// called, by whom (hashed), and whether the answer came from the cache, the
// upstream, or was refused.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
	_ "modernc.org/sqlite"
)

// Logger writes and queries audit entries in a dedicated SQLite database.
type Logger struct {
	db   *sql.DB
	cfg  models.AuditConfig
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the audit SQLite database and creates the schema.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS gateway_audit (
		request_id    TEXT PRIMARY KEY,
		feature       TEXT NOT NULL,
		identity_hash TEXT NOT NULL,
		status        TEXT NOT NULL,
		cache_status  TEXT,
		fingerprint   TEXT,
		error         TEXT,
		latency_ms    INTEGER,
		created_at    INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_gateway_audit_feature ON gateway_audit(feature)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_gateway_audit_created ON gateway_audit(created_at)`)
	return err
}

// Log inserts an audit entry. A nil Logger discards it.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO gateway_audit
		(request_id, feature, identity_hash, status, cache_status, fingerprint,
		 error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.Feature, entry.IdentityHash, string(entry.Status),
		entry.CacheStatus, entry.Fingerprint, entry.Error, entry.LatencyMs,
		entry.CreatedAt.UnixNano(),
	)
	return err
}

// Query returns audit entries matching opts, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, feature, identity_hash, status, cache_status, fingerprint,
		error, latency_ms, created_at
		FROM gateway_audit WHERE 1=1`
	var args []any

	if opts.Feature != "" {
		q += " AND feature = ?"
		args = append(args, opts.Feature)
	}
	if opts.IdentityHash != "" {
		q += " AND identity_hash = ?"
		args = append(args, opts.IdentityHash)
	}
	if opts.Status != "" {
		q += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UnixNano())
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var status string
		var cacheStatus, fingerprint, errText sql.NullString
		var created int64
		if err := rows.Scan(
			&e.RequestID, &e.Feature, &e.IdentityHash, &status,
			&cacheStatus, &fingerprint, &errText, &e.LatencyMs, &created,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Status = models.GatewayStatus(status)
		e.CacheStatus = cacheStatus.String
		e.Fingerprint = fingerprint.String
		e.Error = errText.String
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns counts grouped by feature and status.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT feature, status, count(*) AS cnt
		 FROM gateway_audit GROUP BY feature, status ORDER BY feature, status`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var status string
		if err := rows.Scan(&s.Feature, &status, &s.Count); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Status = models.GatewayStatus(status)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM gateway_audit WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if l.cfg.RetentionDays > 0 {
				_, _ = l.Cleanup(context.Background())
			}
		}
	}
}

// HashIdentity returns a short SHA-256 digest of an identity so that raw
// user ids never reach the audit database.
func HashIdentity(identity string) string {
	h := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(h[:])[:16]
}
