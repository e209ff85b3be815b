// Package server exposes the gateway over HTTP, one endpoint per configured
// feature.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/audit"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/cache"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/config"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/gateway"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/provider"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/quota"
	"github.com/google/uuid"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// feature is a configured endpoint with its compiled prompt template.
type feature struct {
	cfg      config.FeatureConfig
	template string
	prompt   *template.Template
}

// Server is the gateway's HTTP front end.
type Server struct {
	cfg      *config.Config
	gateway  *gateway.Gateway
	cache    *cache.Cache
	store    kv.Store
	auditor  *audit.Logger
	features map[string]*feature
	mux      *http.ServeMux
}

// New creates a Server wired with all dependencies. c and a may be nil.
func New(cfg *config.Config, gw *gateway.Gateway, c *cache.Cache, store kv.Store, a *audit.Logger) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		gateway:  gw,
		cache:    c,
		store:    store,
		auditor:  a,
		features: make(map[string]*feature, len(cfg.Features)),
		mux:      http.NewServeMux(),
	}
	for _, fc := range cfg.Features {
		f, _ := cfg.Feature(fc.Name)
		text := f.Template
		if text == "" {
			text = "{{.Input}}"
		}
		tmpl, err := template.New(f.Name).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("feature %s: parse template: %w", f.Name, err)
		}
		s.features[f.Name] = &feature{cfg: f, template: text, prompt: tmpl}
	}

	s.mux.HandleFunc("POST /v1/ai/{feature}", s.handleFeature)
	s.mux.HandleFunc("GET /v1/ai/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("aigw listening on %s (%d features)", s.cfg.Listen, len(s.features))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// generateRequest is the body of POST /v1/ai/{feature}.
type generateRequest struct {
	Input  string         `json:"input"`
	Params map[string]any `json:"params,omitempty"`
}

type generateResponse struct {
	Data     json.RawMessage `json:"data"`
	Cached   bool            `json:"cached"`
	Degraded bool            `json:"degraded,omitempty"`
}

// fingerprintInput scopes cache entries to a feature, its prompt template
// and the request parameters. The gateway adds the generation options.
type fingerprintInput struct {
	Feature  string         `json:"feature"`
	Template string         `json:"template"`
	Input    string         `json:"input"`
	Params   map[string]any `json:"params,omitempty"`
}

func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.NewString()
	w.Header().Set("X-Request-ID", reqID)

	name := r.PathValue("feature")
	f, ok := s.features[name]
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", fmt.Sprintf("unknown feature %q", name))
		return
	}

	user := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if user == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing X-User-ID header")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	input := cache.Truncate(strings.TrimSpace(req.Input), f.cfg.MaxInputChars)
	if input == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "input is required")
		return
	}

	var prompt strings.Builder
	if err := f.prompt.Execute(&prompt, generateRequest{Input: input, Params: req.Params}); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "params do not fit the prompt template")
		return
	}

	identity := quota.Identity(f.cfg.Name, user)
	call := gateway.Call{
		RequestID: reqID,
		Feature:   f.cfg.Name,
		Identity:  identity,
		Limit:     f.cfg.Limit,
		Window:    f.cfg.Window,
		TTL:       f.cfg.TTL,
		Input: fingerprintInput{
			Feature:  f.cfg.Name,
			Template: f.template,
			Input:    input,
			Params:   req.Params,
		},
		Prompt: prompt.String(),
		Options: models.GenerateOptions{
			Model:       f.cfg.Model,
			System:      f.cfg.System,
			Temperature: f.cfg.Temperature,
			MaxTokens:   f.cfg.MaxTokens,
			JSON:        f.cfg.JSONOutput,
		},
		Decode: gateway.DecodeText,
	}
	if f.cfg.JSONOutput {
		call.Decode = gateway.DecodeJSON
	}

	res, err := s.gateway.Generate(r.Context(), call)
	s.audit(r.Context(), reqID, f.cfg.Name, identity, res, err, start)

	if res == nil {
		if errors.Is(err, models.ErrInvalidInput) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		log.Printf("request=%s feature=%s gateway error: %v", reqID, name, err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	d := res.Diagnostics
	setRateLimitHeaders(w, d)

	switch res.Status {
	case models.StatusThrottled:
		writeThrottled(w, d)
	case models.StatusUpstreamFailed:
		switch {
		case errors.Is(err, models.ErrUpstreamUnavailable):
			writeJSONError(w, http.StatusServiceUnavailable, "feature_unavailable", "AI features are not available right now")
		case f.cfg.Degrade:
			w.Header().Set("X-Cache", models.CacheMiss)
			writeJSON(w, http.StatusOK, generateResponse{Data: json.RawMessage("null"), Degraded: true})
		default:
			writeJSONError(w, http.StatusBadGateway, "upstream_error", "upstream generation failed")
		}
	default:
		w.Header().Set("X-Cache", d.CacheStatus)
		if d.CostSaved {
			w.Header().Set("X-Cost-Saved", "true")
		}
		writeJSON(w, http.StatusOK, generateResponse{
			Data:   res.Payload,
			Cached: res.Status == models.StatusAdmittedHit,
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d models.Diagnostics) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}

type rateLimitedError struct {
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after"`
}

func writeThrottled(w http.ResponseWriter, d models.Diagnostics) {
	w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]rateLimitedError{
		"error": {
			Message:    fmt.Sprintf("rate limit exceeded, retry in %d seconds", d.RetryAfterSeconds),
			Type:       "rate_limited",
			Limit:      d.Limit,
			Remaining:  0,
			ResetAt:    d.ResetAt.UTC(),
			RetryAfter: d.RetryAfterSeconds,
		},
	})
}

func (s *Server) audit(ctx context.Context, reqID, feature, identity string, res *models.GatewayResult, err error, start time.Time) {
	if s.auditor == nil {
		return
	}
	entry := models.AuditEntry{
		RequestID:    reqID,
		Feature:      feature,
		IdentityHash: audit.HashIdentity(identity),
		LatencyMs:    time.Since(start).Milliseconds(),
		CreatedAt:    start,
	}
	if res != nil {
		entry.Status = res.Status
		entry.CacheStatus = res.Diagnostics.CacheStatus
		entry.Fingerprint = res.Diagnostics.Fingerprint
	}
	if err == nil && res != nil {
		err = res.Err()
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if aerr := s.auditor.Log(context.WithoutCancel(ctx), entry); aerr != nil {
		log.Printf("request=%s audit log error: %v", reqID, aerr)
	}
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		log.Printf("cache stats error: %v", err)
		writeJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "cache store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"entries": stats.Entries,
		"hits":    stats.Hits,
		"misses":  stats.Misses,
		"ttl":     s.cache.TTL().String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	storeStatus := "ok"
	if err := s.store.Ping(r.Context()); err != nil {
		log.Printf("health: store ping failed: %v", err)
		status, storeStatus, code = "degraded", "unavailable", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":              status,
		"store":               storeStatus,
		"backend":             s.cfg.Store.Backend,
		"provider_configured": provider.Configured(s.cfg),
		"failure_policy":      s.cfg.Quota.FailurePolicy,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, typ, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":%q,"code":%d}}`, message, typ, code)
}
