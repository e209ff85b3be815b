package provider

import (
	"context"
	"fmt"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
	"golang.org/x/time/rate"
)

// Paced spaces calls to an upstream so that the gateway's misses, summed
// over every identity, stay under the provider's own request rate.
type Paced struct {
	next Generator
	lim  *rate.Limiter
}

// NewPaced wraps next with a token bucket of rps and burst. A burst below 1
// is raised to 1.
func NewPaced(next Generator, rps float64, burst int) *Paced {
	if burst < 1 {
		burst = 1
	}
	return &Paced{next: next, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Generate waits for a token, then calls the wrapped generator. A context
// that ends while waiting is reported as an upstream failure.
func (p *Paced) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	if err := p.lim.Wait(ctx); err != nil {
		return "", fmt.Errorf("pacing upstream: %w: %w", models.ErrUpstreamFailure, err)
	}
	return p.next.Generate(ctx, prompt, opts)
}
