package models

import "time"

// CacheEntry is a memoized generation result.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Value       []byte    `json:"value"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
