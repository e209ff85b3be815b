package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/config"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

func openAIUpstream(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-provider" {
			t.Error("expected provider API key in upstream request")
		}
		var req models.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system + user messages, got %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("expected json response format")
		}
		json.NewEncoder(w).Encode(models.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: req.Model,
			Choices: []models.Choice{
				{Message: models.ChatMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerate(t *testing.T) {
	upstream := openAIUpstream(t, `{"summary":"Seasoned nurse"}`)
	o := &OpenAI{Name: "openai", URL: upstream.URL, APIKey: "sk-provider", Model: "gpt-4o-mini"}

	text, err := o.Generate(context.Background(), "write a summary", models.GenerateOptions{System: "You are a resume writer", JSON: true})
	if err != nil {
		t.Fatal(err)
	}
	if text != `{"summary":"Seasoned nurse"}` {
		t.Errorf("unexpected text: %s", text)
	}
}

func TestMissingAPIKey(t *testing.T) {
	o := &OpenAI{Name: "openai", URL: "http://127.0.0.1:1"}
	_, err := o.Generate(context.Background(), "hi", models.GenerateOptions{})
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAnthropicGenerate(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sk-ant" {
			t.Error("expected x-api-key header")
		}
		if r.Header.Get("anthropic-version") != defaultAnthropicVersion {
			t.Errorf("unexpected version %q", r.Header.Get("anthropic-version"))
		}
		var req models.AnthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != defaultAnthropicMaxTokens || req.System != "sys" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(models.AnthropicResponse{
			ID:      "msg_1",
			Content: []models.AnthropicContent{{Type: "text", Text: "Hello"}, {Type: "text", Text: " there"}},
		})
	}))
	defer upstream.Close()

	a := &Anthropic{Name: "claude", URL: upstream.URL, APIKey: "sk-ant", Model: "claude-3-5-haiku"}
	text, err := a.Generate(context.Background(), "hi", models.GenerateOptions{System: "sys"})
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello there" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestUpstreamErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		retryable bool
	}{
		{"server error", http.StatusBadGateway, "oops", models.ErrUpstreamFailure, true},
		{"rate limited", http.StatusTooManyRequests, "slow down", models.ErrUpstreamFailure, true},
		{"bad request", http.StatusBadRequest, "bad", models.ErrUpstreamFailure, false},
		{"malformed", http.StatusOK, "not json", models.ErrUpstreamFailure, false},
		{"empty", http.StatusOK, `{"choices":[]}`, models.ErrUpstreamFailure, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer upstream.Close()

			o := &OpenAI{Name: "openai", URL: upstream.URL, APIKey: "sk"}
			_, err := o.Generate(context.Background(), "hi", models.GenerateOptions{})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if perr.Retryable() != tc.retryable {
				t.Errorf("expected retryable=%v", tc.retryable)
			}
		})
	}
}

func TestChainFallback(t *testing.T) {
	var firstCalls, secondCalls atomic.Int32
	failing := GeneratorFunc(func(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
		firstCalls.Add(1)
		return "", failure("primary", http.StatusServiceUnavailable, "down")
	})
	ok := GeneratorFunc(func(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
		secondCalls.Add(1)
		return "fallback answer", nil
	})

	c := NewChain(Named{Name: "primary", Generator: failing}, Named{Name: "secondary", Generator: ok})
	text, err := c.Generate(context.Background(), "hi", models.GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if text != "fallback answer" {
		t.Errorf("unexpected text %q", text)
	}
	if firstCalls.Load() != 1 || secondCalls.Load() != 1 {
		t.Errorf("expected one call each, got %d/%d", firstCalls.Load(), secondCalls.Load())
	}
}

func TestChainStopsOnNonRetryable(t *testing.T) {
	var secondCalls atomic.Int32
	bad := GeneratorFunc(func(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
		return "", failure("primary", http.StatusBadRequest, "bad prompt")
	})
	next := GeneratorFunc(func(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
		secondCalls.Add(1)
		return "x", nil
	})

	c := NewChain(Named{Name: "primary", Generator: bad}, Named{Name: "secondary", Generator: next})
	if _, err := c.Generate(context.Background(), "hi", models.GenerateOptions{}); !errors.Is(err, models.ErrUpstreamFailure) {
		t.Errorf("expected ErrUpstreamFailure, got %v", err)
	}
	if secondCalls.Load() != 0 {
		t.Error("non-retryable failure should not fall through")
	}
}

func TestEmptyChainUnavailable(t *testing.T) {
	_, err := NewChain().Generate(context.Background(), "hi", models.GenerateOptions{})
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	upstream := openAIUpstream(t, `{"ok":true}`)
	cfg := &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "nokey", URL: upstream.URL},
			{Name: "test", URL: upstream.URL, APIKey: "sk-provider", RPS: 100, Burst: 5},
		},
	}

	chain, err := FromConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if chain.Len() != 2 {
		t.Fatalf("expected 2 links, got %d", chain.Len())
	}
	if !Configured(cfg) {
		t.Error("expected configured")
	}

	text, err := chain.Generate(context.Background(), "hi", models.GenerateOptions{System: "s", JSON: true})
	if err != nil {
		t.Fatal(err)
	}
	if text != `{"ok":true}` {
		t.Errorf("unexpected text %q", text)
	}
}

func TestPacedHonorsContext(t *testing.T) {
	var calls atomic.Int32
	g := NewPaced(GeneratorFunc(func(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
		calls.Add(1)
		return "ok", nil
	}), 0.001, 1)

	if _, err := g.Generate(context.Background(), "a", models.GenerateOptions{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, "b", models.GenerateOptions{})
	if !errors.Is(err, models.ErrUpstreamFailure) {
		t.Errorf("expected ErrUpstreamFailure while waiting, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}
