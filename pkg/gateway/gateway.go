// Package gateway puts admission control and response memoization in front of
// an upstream generator. Every call is admitted first, then answered from the
// cache when possible, and only otherwise forwarded upstream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/cache"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/provider"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/quota"
	"golang.org/x/sync/singleflight"
)

// Call is one gateway request.
type Call struct {
	// RequestID and Feature only label log lines.
	RequestID string
	Feature   string

	Identity string
	Limit    int
	// Window overrides the ledger's default window when > 0.
	Window time.Duration
	// TTL overrides the cache's default lifetime when > 0.
	TTL time.Duration

	// Input is fingerprinted together with Options. When nil, Prompt is
	// used.
	Input   any
	Prompt  string
	Options models.GenerateOptions

	// Decode turns upstream text into the stored payload. A Decode error
	// fails the call and nothing is cached. When nil the text is stored as a
	// JSON string.
	Decode func(text string) (json.RawMessage, error)
}

// Gateway orchestrates a quota ledger, a response cache and an upstream.
type Gateway struct {
	ledger   *quota.Ledger
	cache    *cache.Cache
	upstream provider.Generator
	coalesce bool
	timeout  time.Duration
	group    singleflight.Group

	// joined, when set, runs after a caller has attached to a shared fill.
	joined func()
}

// DefaultUpstreamTimeout bounds a shared fill once it no longer follows any
// single caller's context.
const DefaultUpstreamTimeout = 2 * time.Minute

// Option configures a Gateway.
type Option func(*Gateway)

// WithCoalesce collapses concurrent misses for one fingerprint into a single
// upstream call.
func WithCoalesce(on bool) Option {
	return func(g *Gateway) { g.coalesce = on }
}

// WithUpstreamTimeout bounds shared fills started by WithCoalesce.
func WithUpstreamTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// New creates a Gateway. A nil cache disables memoization.
func New(ledger *quota.Ledger, c *cache.Cache, upstream provider.Generator, opts ...Option) *Gateway {
	g := &Gateway{
		ledger:   ledger,
		cache:    c,
		upstream: upstream,
		timeout:  DefaultUpstreamTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.timeout <= 0 {
		g.timeout = DefaultUpstreamTimeout
	}
	return g
}

// Generate runs call through admission, cache and upstream.
//
// A throttled call returns a Throttled result and a nil error. An upstream
// failure returns an UpstreamFailed result and an error wrapping
// models.ErrUpstreamFailure or models.ErrUpstreamUnavailable. Only invalid
// calls return a nil result.
func (g *Gateway) Generate(ctx context.Context, call Call) (*models.GatewayResult, error) {
	admit, err := g.ledger.AdmitWindow(ctx, call.Identity, call.Limit, call.Window)
	if err != nil {
		if !errors.Is(err, models.ErrStoreUnavailable) {
			return nil, err
		}
		log.Printf("request=%s feature=%s identity=%s quota degraded (%s): %v",
			call.RequestID, call.Feature, call.Identity, g.ledger.Policy(), err)
	}

	res := &models.GatewayResult{
		Diagnostics: models.Diagnostics{
			Limit:         admit.Limit,
			Remaining:     admit.Remaining,
			ResetAt:       admit.ResetAt,
			QuotaDegraded: admit.Degraded,
		},
	}
	if !admit.Success {
		res.Status = models.StatusThrottled
		res.Diagnostics.Remaining = 0
		res.Diagnostics.RetryAfterSeconds = admit.RetryAfterSeconds
		return res, nil
	}

	var fp string
	if g.cache != nil {
		fp, err = g.cache.Fingerprint(cacheKey(call))
		if err != nil {
			return nil, fmt.Errorf("gateway: %w: %w", models.ErrInvalidInput, err)
		}
		res.Diagnostics.Fingerprint = fp

		value, ok, err := g.cache.Lookup(ctx, fp)
		if err != nil {
			log.Printf("request=%s feature=%s cache lookup failed, treating as miss: %v", call.RequestID, call.Feature, err)
		}
		if ok {
			res.Status = models.StatusAdmittedHit
			res.Payload = value
			res.Diagnostics.CacheStatus = models.CacheHit
			res.Diagnostics.CostSaved = true
			return res, nil
		}
	}
	res.Diagnostics.CacheStatus = models.CacheMiss

	var payload json.RawMessage
	if g.coalesce && fp != "" {
		payload, err = g.shared(ctx, call, fp)
	} else {
		payload, err = g.fill(ctx, call, fp)
	}
	if err != nil {
		res.Status = models.StatusUpstreamFailed
		return res, err
	}

	res.Status = models.StatusAdmittedMiss
	res.Payload = payload
	return res, nil
}

// shared joins or starts the fill for fp. The fill runs on a context detached
// from every caller and bounded by the upstream timeout. Each caller returns
// as soon as its own context ends.
func (g *Gateway) shared(ctx context.Context, call Call, fp string) (json.RawMessage, error) {
	ch := g.group.DoChan(fp, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return g.fill(fctx, call, fp)
	})
	if g.joined != nil {
		g.joined()
	}

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(json.RawMessage), nil
	case <-ctx.Done():
		log.Printf("request=%s feature=%s gave up waiting for shared upstream call: %v", call.RequestID, call.Feature, ctx.Err())
		return nil, fmt.Errorf("gateway upstream: %w: %w", models.ErrUpstreamFailure, ctx.Err())
	}
}

// fingerprintKey is what the cache hashes: the caller's input together
// with every option that changes the generated text.
type fingerprintKey struct {
	Input   any                    `json:"input"`
	Options models.GenerateOptions `json:"options"`
}

func cacheKey(call Call) fingerprintKey {
	input := call.Input
	if input == nil {
		input = call.Prompt
	}
	return fingerprintKey{Input: input, Options: call.Options}
}

// fill calls upstream, decodes the answer and stores it under fp.
func (g *Gateway) fill(ctx context.Context, call Call, fp string) (json.RawMessage, error) {
	text, err := g.upstream.Generate(ctx, call.Prompt, call.Options)
	if err != nil {
		if !errors.Is(err, models.ErrUpstreamUnavailable) && !errors.Is(err, models.ErrUpstreamFailure) {
			err = fmt.Errorf("%w: %w", models.ErrUpstreamFailure, err)
		}
		log.Printf("request=%s feature=%s identity=%s upstream error: %v", call.RequestID, call.Feature, call.Identity, err)
		return nil, fmt.Errorf("gateway upstream: %w", err)
	}

	payload, err := decode(call.Decode, text)
	if err != nil {
		log.Printf("request=%s feature=%s malformed upstream output: %v", call.RequestID, call.Feature, err)
		return nil, fmt.Errorf("gateway decode: %w: %w", models.ErrUpstreamFailure, err)
	}

	if g.cache != nil && fp != "" {
		if err := g.cache.Store(ctx, fp, payload, call.TTL); err != nil {
			log.Printf("request=%s feature=%s cache store failed: %v", call.RequestID, call.Feature, err)
		}
	}
	return payload, nil
}

func decode(fn func(string) (json.RawMessage, error), text string) (json.RawMessage, error) {
	if fn != nil {
		return fn(text)
	}
	b, err := json.Marshal(text)
	if err != nil {
		return nil, err
	}
	return b, nil
}
