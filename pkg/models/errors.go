package models

import "errors"

var (
	// ErrThrottled is returned when an identity has used its window budget.
	ErrThrottled = errors.New("throttled")
	// ErrUpstreamUnavailable is returned when no generator is configured or reachable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamFailure is returned when the generator errored or produced unusable output.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrStoreUnavailable is returned when the quota or cache store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidInput is returned for malformed calls.
	ErrInvalidInput = errors.New("invalid input")
)
