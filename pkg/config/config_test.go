package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Listen)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Quota.Limit != 10 || cfg.Quota.Window != time.Minute {
		t.Errorf("expected 10 per minute, got %d per %v", cfg.Quota.Limit, cfg.Quota.Window)
	}
	if cfg.Quota.FailurePolicy != models.FailOpen {
		t.Errorf("expected fail-open, got %s", cfg.Quota.FailurePolicy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	path := writeConfig(t, `
listen: ":9090"
store:
  backend: redis
  redis:
    addr: redis:6379
quota:
  failure_policy: fail-closed
providers:
  - name: openai
    url: https://api.openai.com
    api_key: ${TEST_API_KEY}
    model: gpt-4o-mini
    rps: 5
cache:
  ttl: 30m
  coalesce: true
features:
  - name: summary
    limit: 5
    template: "Write a resume summary for: {{.Input}}"
  - name: ats-score
    window: 2m
    json_output: true
    degrade: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.Store.Backend != BackendRedis || cfg.Store.Redis.Addr != "redis:6379" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Store.Redis.Prefix != "aigw" {
		t.Errorf("expected default prefix to survive, got %q", cfg.Store.Redis.Prefix)
	}
	if cfg.Providers[0].APIKey != "sk-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.Providers[0].APIKey)
	}
	if cfg.Quota.FailurePolicy != models.FailClosed {
		t.Errorf("expected fail-closed, got %s", cfg.Quota.FailurePolicy)
	}
	if cfg.Cache.TTL != 30*time.Minute || !cfg.Cache.Coalesce || !cfg.Cache.Enabled {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}

	summary, ok := cfg.Feature("summary")
	if !ok {
		t.Fatal("expected summary feature")
	}
	if summary.Limit != 5 || summary.Window != time.Minute || summary.TTL != 30*time.Minute {
		t.Errorf("unexpected summary defaults: %+v", summary)
	}
	ats, _ := cfg.Feature("ats-score")
	if ats.Limit != 10 || ats.Window != 2*time.Minute || !ats.Degrade || !ats.JSONOutput {
		t.Errorf("unexpected ats-score config: %+v", ats)
	}
	if _, ok := cfg.Feature("missing"); ok {
		t.Error("expected unknown feature lookup to fail")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"backend":   "store:\n  backend: etcd\n",
		"policy":    "quota:\n  failure_policy: sometimes\n",
		"feature":   "features:\n  - name: \"Bad Name\"\n",
		"duplicate": "features:\n  - name: a\n  - name: a\n",
		"provider":  "providers:\n  - name: x\n    type: cohere\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			if err == nil || !strings.Contains(err.Error(), "validate config") {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
