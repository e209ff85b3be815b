package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/audit"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

func TestListQueryOpts(t *testing.T) {
	opts, err := listQuery{feature: "summary", user: "42", status: "Throttled", since: "2025-03-01", limit: 5}.opts()
	if err != nil {
		t.Fatal(err)
	}
	if opts.IdentityHash != audit.HashIdentity("summary:42") {
		t.Errorf("expected hashed identity, got %q", opts.IdentityHash)
	}
	if opts.Status != models.StatusThrottled || opts.Limit != 5 {
		t.Errorf("unexpected opts %+v", opts)
	}
	if !opts.Since.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected since %v", opts.Since)
	}

	tests := []struct {
		name string
		q    listQuery
	}{
		{"user without feature", listQuery{user: "42"}},
		{"unknown status", listQuery{status: "Denied"}},
		{"bad date", listQuery{since: "March"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.q.opts(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPrintAuditEntries(t *testing.T) {
	var buf bytes.Buffer
	if err := printAuditEntries(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "No audit entries found.\n" {
		t.Errorf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	err := printAuditEntries(&buf, []models.AuditEntry{{
		RequestID:    "req-1",
		Feature:      "summary",
		IdentityHash: "abcd",
		Status:       models.StatusAdmittedHit,
		CacheStatus:  models.CacheHit,
		LatencyMs:    12,
		CreatedAt:    time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
	}})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"req-1", "summary", "Admitted-Hit", "HIT", "12ms", "2025-03-03 12:00:00"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestPrintAuditStats(t *testing.T) {
	var buf bytes.Buffer
	err := printAuditStats(&buf, []models.AuditStat{
		{Feature: "summary", Status: models.StatusAdmittedHit, Count: 3},
		{Feature: "summary", Status: models.StatusAdmittedMiss, Count: 1},
		{Feature: "bullets", Status: models.StatusThrottled, Count: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got:\n%s", buf.String())
	}
	if !strings.Contains(lines[1], "summary") || !strings.Contains(lines[1], "75%") {
		t.Errorf("unexpected summary row %q", lines[1])
	}
	if !strings.Contains(lines[2], "bullets") || !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
		t.Errorf("unexpected bullets row %q", lines[2])
	}
}
