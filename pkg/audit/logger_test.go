package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

func tempCfg(t *testing.T) models.AuditConfig {
	t.Helper()
	return models.AuditConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays: 30,
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEntry() models.AuditEntry {
	return models.AuditEntry{
		RequestID:    "req-001",
		Feature:      "summary",
		IdentityHash: HashIdentity("summary:user-1"),
		Status:       models.StatusAdmittedMiss,
		CacheStatus:  models.CacheMiss,
		Fingerprint:  "0123456789abcdef",
		LatencyMs:    150,
		CreatedAt:    time.Now(),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	if err := l.Log(ctx, sampleEntry()); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{Feature: "summary"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.RequestID != "req-001" || e.Status != models.StatusAdmittedMiss || e.CacheStatus != models.CacheMiss {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Fingerprint != "0123456789abcdef" || e.LatencyMs != 150 {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestQueryFilters(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	old := sampleEntry()
	old.RequestID = "req-old"
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	_ = l.Log(ctx, old)

	throttled := sampleEntry()
	throttled.RequestID = "req-429"
	throttled.Status = models.StatusThrottled
	throttled.CacheStatus = ""
	_ = l.Log(ctx, throttled)

	other := sampleEntry()
	other.RequestID = "req-ats"
	other.Feature = "ats-score"
	_ = l.Log(ctx, other)

	entries, err := l.Query(ctx, models.AuditQueryOpts{Status: models.StatusThrottled})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].RequestID != "req-429" {
		t.Errorf("status filter: unexpected %+v", entries)
	}

	entries, _ = l.Query(ctx, models.AuditQueryOpts{Since: time.Now().Add(-time.Hour)})
	if len(entries) != 2 {
		t.Errorf("since filter: expected 2, got %d", len(entries))
	}

	entries, _ = l.Query(ctx, models.AuditQueryOpts{IdentityHash: HashIdentity("summary:user-1"), Feature: "summary"})
	if len(entries) != 2 {
		t.Errorf("identity filter: expected 2, got %d", len(entries))
	}
	entries, _ = l.Query(ctx, models.AuditQueryOpts{IdentityHash: HashIdentity("summary:user-2")})
	if len(entries) != 0 {
		t.Errorf("identity filter: expected 0 for another user, got %d", len(entries))
	}

	entries, _ = l.Query(ctx, models.AuditQueryOpts{Limit: 1})
	if len(entries) != 1 {
		t.Errorf("limit: expected 1, got %d", len(entries))
	}
}

func TestCleanup(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 0 // everything is old
	l := mustNew(t, cfg)
	ctx := context.Background()

	entry := sampleEntry()
	entry.CreatedAt = time.Now().AddDate(0, 0, -1)
	_ = l.Log(ctx, entry)

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	_ = l.Log(ctx, sampleEntry())
	e2 := sampleEntry()
	e2.RequestID = "req-002"
	_ = l.Log(ctx, e2)
	e3 := sampleEntry()
	e3.RequestID = "req-003"
	e3.Status = models.StatusAdmittedHit
	_ = l.Log(ctx, e3)

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(stats))
	}
	for _, s := range stats {
		if s.Status == models.StatusAdmittedMiss && s.Count != 2 {
			t.Errorf("expected 2 misses, got %d", s.Count)
		}
	}
}

func TestHashIdentity(t *testing.T) {
	h := HashIdentity("summary:user-1")
	if len(h) != 16 {
		t.Errorf("expected 16-char hash, got %d", len(h))
	}
	if h == HashIdentity("summary:user-2") {
		t.Error("distinct identities should hash differently")
	}
}

func TestNilLoggerSafe(t *testing.T) {
	var l *Logger
	if err := l.Log(context.Background(), sampleEntry()); err != nil {
		t.Errorf("nil logger should be safe: %v", err)
	}
}

func TestNewInvalidPath(t *testing.T) {
	cfg := models.AuditConfig{
		Enabled: true,
		DBPath:  filepath.Join(os.TempDir(), "nonexistent", "deep", "path", "audit.db"),
	}
	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for invalid path")
	}
}
