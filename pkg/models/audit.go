package models

import "time"

// AuditEntry records the outcome of a single gateway call.
type AuditEntry struct {
	RequestID    string        `json:"request_id"`
	Feature      string        `json:"feature"`
	IdentityHash string        `json:"identity_hash"`
	Status       GatewayStatus `json:"status"`
	CacheStatus  string        `json:"cache_status,omitempty"`
	Fingerprint  string        `json:"fingerprint,omitempty"`
	Error        string        `json:"error,omitempty"`
	LatencyMs    int64         `json:"latency_ms"`
	CreatedAt    time.Time     `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Feature      string
	IdentityHash string
	Status       GatewayStatus
	Since        time.Time
	Limit        int
}

// AuditStat holds aggregate audit counts for a feature/status combination.
type AuditStat struct {
	Feature string
	Status  GatewayStatus
	Count   int
}
