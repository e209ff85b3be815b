// Package quota bounds how many requests an identity may make per window.
//
// Admission is a single atomic increment-and-read against the shared store,
// so concurrent callers for the same identity can never admit more than the
// limit between them. Denied attempts still bump the counter; they can never
// turn a later request into an admission because success requires
// count <= limit.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/clock"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

// DefaultWindow is the window used when none is configured.
const DefaultWindow = 60 * time.Second

const keyPrefix = "quota:"

// Ledger tracks per-identity consumption in a kv.Store.
type Ledger struct {
	store  kv.Store
	window time.Duration
	policy models.FailurePolicy
	clock  clock.Clock
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithWindow sets the default window duration.
func WithWindow(d time.Duration) Option {
	return func(l *Ledger) { l.window = d }
}

// WithFailurePolicy sets the decision taken when the store is unreachable.
func WithFailurePolicy(p models.FailurePolicy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithClock sets the clock used to compute reset times.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// New creates a Ledger over store. Defaults: 60s window, fail-open.
func New(store kv.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		window: DefaultWindow,
		policy: models.FailOpen,
		clock:  clock.Real(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.window <= 0 {
		l.window = DefaultWindow
	}
	if l.policy != models.FailClosed {
		l.policy = models.FailOpen
	}
	return l
}

// Identity namespaces a user id by feature so that call sites with different
// limits never share a counter.
func Identity(feature, user string) string {
	return feature + ":" + user
}

// Window returns the ledger's default window.
func (l *Ledger) Window() time.Duration { return l.window }

// Policy returns the ledger's failure policy.
func (l *Ledger) Policy() models.FailurePolicy { return l.policy }

// Admit decides whether identity may make another request under limit in the
// ledger's default window.
func (l *Ledger) Admit(ctx context.Context, identity string, limit int) (models.AdmitResult, error) {
	return l.AdmitWindow(ctx, identity, limit, l.window)
}

// AdmitWindow is Admit with an explicit window duration.
//
// When the store fails, the returned result is the failure policy's decision
// (marked Degraded) and the error wraps models.ErrStoreUnavailable. Callers
// should log the error and honor the result.
func (l *Ledger) AdmitWindow(ctx context.Context, identity string, limit int, window time.Duration) (models.AdmitResult, error) {
	if identity == "" || limit <= 0 {
		return models.AdmitResult{}, fmt.Errorf("quota admit: %w: identity %q limit %d", models.ErrInvalidInput, identity, limit)
	}
	if window <= 0 {
		window = l.window
	}

	now := l.clock.Now()
	count, ttl, err := l.store.IncrWindow(ctx, keyPrefix+identity, window)
	if err != nil {
		return l.degraded(now, limit, window), fmt.Errorf("quota admit %q: %w: %w", identity, models.ErrStoreUnavailable, err)
	}
	if ttl <= 0 || ttl > window {
		ttl = window
	}

	res := models.AdmitResult{
		Limit:   limit,
		ResetAt: now.Add(ttl),
	}
	if count <= int64(limit) {
		res.Success = true
		res.Remaining = limit - int(count)
		return res, nil
	}
	res.RetryAfterSeconds = retryAfter(ttl, window)
	return res, nil
}

func (l *Ledger) degraded(now time.Time, limit int, window time.Duration) models.AdmitResult {
	if l.policy == models.FailClosed {
		return models.AdmitResult{
			Limit:             limit,
			RetryAfterSeconds: retryAfter(window, window),
			ResetAt:           now.Add(window),
			Degraded:          true,
		}
	}
	return models.AdmitResult{
		Success:   true,
		Limit:     limit,
		Remaining: limit,
		ResetAt:   now.Add(window),
		Degraded:  true,
	}
}

// retryAfter rounds ttl up to whole seconds, clamped to [1, window].
func retryAfter(ttl, window time.Duration) int {
	secs := int((ttl + time.Second - 1) / time.Second)
	max := int((window + time.Second - 1) / time.Second)
	if secs > max {
		secs = max
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Peek reports identity's current window without consuming quota.
func (l *Ledger) Peek(ctx context.Context, identity string, limit int) (models.QuotaWindow, error) {
	w := models.QuotaWindow{
		Identity:       identity,
		Limit:          limit,
		WindowDuration: l.window,
	}
	count, ttl, err := l.store.Counter(ctx, keyPrefix+identity)
	if err != nil {
		return w, fmt.Errorf("quota peek %q: %w: %w", identity, models.ErrStoreUnavailable, err)
	}
	if count == 0 {
		return w, nil
	}
	// Denied attempts also increment the stored counter; only admissions count.
	if limit > 0 && count > int64(limit) {
		count = int64(limit)
	}
	w.Count = count
	w.WindowStart = l.clock.Now().Add(ttl - l.window)
	return w, nil
}

// Reset clears identity's current window.
func (l *Ledger) Reset(ctx context.Context, identity string) error {
	if err := l.store.Delete(ctx, keyPrefix+identity); err != nil {
		return fmt.Errorf("quota reset %q: %w: %w", identity, models.ErrStoreUnavailable, err)
	}
	return nil
}
