package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// GatewayStatus is the terminal state of a gateway call.
type GatewayStatus string

const (
	StatusAdmittedHit    GatewayStatus = "Admitted-Hit"
	StatusAdmittedMiss   GatewayStatus = "Admitted-Miss"
	StatusThrottled      GatewayStatus = "Throttled"
	StatusUpstreamFailed GatewayStatus = "UpstreamFailed"
)

// Cache status values surfaced to clients.
const (
	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// GatewayResult is the outcome of one gateway call.
type GatewayResult struct {
	Status      GatewayStatus   `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Diagnostics Diagnostics     `json:"diagnostics"`
}

// Diagnostics carries cache and quota metadata for a GatewayResult.
type Diagnostics struct {
	CacheStatus       string    `json:"cache_status,omitempty"`
	CostSaved         bool      `json:"cost_saved,omitempty"`
	Fingerprint       string    `json:"fingerprint,omitempty"`
	Limit             int       `json:"limit"`
	Remaining         int       `json:"remaining"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitempty"`
	ResetAt           time.Time `json:"reset_at"`
	QuotaDegraded     bool      `json:"quota_degraded,omitempty"`
}

// Admitted reports whether the call passed admission control.
func (r *GatewayResult) Admitted() bool {
	return r.Status == StatusAdmittedHit || r.Status == StatusAdmittedMiss
}

// Err reports a throttled result as an error wrapping ErrThrottled, for
// callers that handle refusals on their error path.
func (r *GatewayResult) Err() error {
	if r.Status != StatusThrottled {
		return nil
	}
	return fmt.Errorf("%w: retry after %ds", ErrThrottled, r.Diagnostics.RetryAfterSeconds)
}
