// Package provider implements the upstream text generators the gateway calls
// on a cache miss: OpenAI-compatible and Anthropic HTTP clients, an ordered
// fallback chain, and a pacing wrapper that keeps the gateway under the
// provider's own rate limits.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	return f(ctx, prompt, opts)
}

// Error describes a failed upstream call. It unwraps to
// models.ErrUpstreamUnavailable or models.ErrUpstreamFailure.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// Unwrap returns the gateway error class.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the next provider in a chain should be tried.
func (e *Error) Retryable() bool {
	return errors.Is(e.Err, models.ErrUpstreamUnavailable) ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

func unavailable(name, msg string) error {
	return &Error{Provider: name, Message: msg, Err: models.ErrUpstreamUnavailable}
}

func failure(name string, code int, msg string) error {
	return &Error{Provider: name, StatusCode: code, Message: msg, Err: models.ErrUpstreamFailure}
}

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

// post sends a JSON body to baseURL+path and returns the response body for a
// 2xx reply.
func post(ctx context.Context, client *http.Client, name, baseURL, path string, headers map[string]string, body []byte) ([]byte, error) {
	target, err := url.Parse(baseURL)
	if err != nil || target.Host == "" {
		return nil, unavailable(name, fmt.Sprintf("invalid provider URL %q", baseURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(target.String(), "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, unavailable(name, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Provider: name, Message: ctx.Err().Error(), Err: models.ErrUpstreamFailure}
		}
		return nil, unavailable(name, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure(name, resp.StatusCode, fmt.Sprintf("read response: %v", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, failure(name, resp.StatusCode, msg)
	}
	return respBody, nil
}
