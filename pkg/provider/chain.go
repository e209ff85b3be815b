package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/config"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

// Named is a Generator with a name for logging.
type Named struct {
	Name string
	Generator
}

// Chain tries generators in order and moves to the next one when a call
// fails in a retryable way (unreachable, 429, 5xx).
type Chain struct {
	links []Named
}

// NewChain creates a Chain over links.
func NewChain(links ...Named) *Chain {
	return &Chain{links: links}
}

// Len returns the number of generators in the chain.
func (c *Chain) Len() int { return len(c.links) }

// Generate implements Generator.
func (c *Chain) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	if len(c.links) == 0 {
		return "", unavailable("chain", "no providers configured")
	}

	var lastErr error
	for _, link := range c.links {
		text, err := link.Generate(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		var perr *Error
		if errors.As(err, &perr) && !perr.Retryable() {
			break
		}
		log.Printf("upstream %s failed: %v, trying next", link.Name, err)
	}
	return "", lastErr
}

// FromConfig builds a chain from the configured providers, in order. Each
// provider with an rps setting is paced.
func FromConfig(cfg *config.Config, client *http.Client) (*Chain, error) {
	links := make([]Named, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		var g Generator
		switch p.Type {
		case "", "openai":
			g = &OpenAI{Name: p.Name, URL: p.URL, APIKey: p.APIKey, Model: p.Model, Client: client}
		case "anthropic":
			g = &Anthropic{Name: p.Name, URL: p.URL, APIKey: p.APIKey, Model: p.Model, Version: p.Version, Client: client}
		default:
			return nil, fmt.Errorf("provider %s: unknown type %q", p.Name, p.Type)
		}
		if p.RPS > 0 {
			g = NewPaced(g, p.RPS, p.Burst)
		}
		links = append(links, Named{Name: p.Name, Generator: g})
	}
	return NewChain(links...), nil
}

// Configured reports whether any provider in cfg has an API key.
func Configured(cfg *config.Config) bool {
	for _, p := range cfg.Providers {
		if p.APIKey != "" {
			return true
		}
	}
	return false
}
