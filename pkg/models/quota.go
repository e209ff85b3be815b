package models

import "time"

// FailurePolicy decides admission when the quota store cannot be reached.
type FailurePolicy string

const (
	// FailOpen admits requests while the store is down.
	FailOpen FailurePolicy = "fail-open"
	// FailClosed denies requests while the store is down.
	FailClosed FailurePolicy = "fail-closed"
)

// QuotaWindow is one identity's consumption state for the current window.
type QuotaWindow struct {
	Identity       string        `json:"identity"`
	Count          int64         `json:"count"`
	WindowStart    time.Time     `json:"window_start"`
	Limit          int           `json:"limit"`
	WindowDuration time.Duration `json:"window_duration"`
}

// AdmitResult is the ledger's decision for a single admission attempt.
type AdmitResult struct {
	Success           bool      `json:"success"`
	Limit             int       `json:"limit"`
	Remaining         int       `json:"remaining"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitempty"`
	ResetAt           time.Time `json:"reset_at"`
	// Degraded is set when the decision came from the failure policy
	// rather than the store.
	Degraded bool `json:"degraded,omitempty"`
}
