package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds all gateway configuration.
type Config struct {
	Listen    string             `yaml:"listen"`
	Store     StoreConfig        `yaml:"store"`
	Quota     QuotaConfig        `yaml:"quota"`
	Cache     CacheConfig        `yaml:"cache"`
	Providers []ProviderConfig   `yaml:"providers"`
	Features  []FeatureConfig    `yaml:"features"`
	Audit     models.AuditConfig `yaml:"audit"`
}

// StoreConfig selects the shared store behind the quota ledger and cache.
type StoreConfig struct {
	Backend    string        `yaml:"backend"`
	SQLitePath string        `yaml:"sqlite_path"`
	Redis      RedisConfig   `yaml:"redis"`
	SweepEvery time.Duration `yaml:"sweep_every"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// QuotaConfig holds ledger defaults. Features may override limit and window.
type QuotaConfig struct {
	Limit         int                  `yaml:"limit"`
	Window        time.Duration        `yaml:"window"`
	FailurePolicy models.FailurePolicy `yaml:"failure_policy"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	MaxInputChars int           `yaml:"max_input_chars"`
	// Coalesce collapses concurrent misses for one fingerprint into a
	// single upstream call.
	Coalesce bool `yaml:"coalesce"`
}

// ProviderConfig defines an upstream LLM provider.
// Type is "openai" (default) or "anthropic". Providers are tried in order.
type ProviderConfig struct {
	Name    string  `yaml:"name"`
	URL     string  `yaml:"url"`
	APIKey  string  `yaml:"api_key"`
	Type    string  `yaml:"type"`
	Model   string  `yaml:"model"`
	Version string  `yaml:"version"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// FeatureConfig describes one AI endpoint of the product.
type FeatureConfig struct {
	Name          string        `yaml:"name"`
	Limit         int           `yaml:"limit"`
	Window        time.Duration `yaml:"window"`
	TTL           time.Duration `yaml:"ttl"`
	MaxInputChars int           `yaml:"max_input_chars"`
	Model         string        `yaml:"model"`
	System        string        `yaml:"system"`
	Template      string        `yaml:"template"`
	Temperature   *float64      `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	JSONOutput    bool          `yaml:"json_output"`
	// Degrade answers upstream failures with an empty 200 instead of an error.
	Degrade bool `yaml:"degrade"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Store: StoreConfig{
			Backend:    BackendMemory,
			SQLitePath: "aigw.db",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "aigw",
			},
			SweepEvery: 2 * time.Minute,
		},
		Quota: QuotaConfig{
			Limit:         10,
			Window:        time.Minute,
			FailurePolicy: models.FailOpen,
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTL:           time.Hour,
			MaxInputChars: 8000,
		},
		Audit: models.AuditConfig{
			DBPath:        "aigw-audit.db",
			RetentionDays: 30,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

var featureName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	switch c.Quota.FailurePolicy {
	case models.FailOpen, models.FailClosed:
	default:
		return fmt.Errorf("quota.failure_policy: must be %q or %q, got %q", models.FailOpen, models.FailClosed, c.Quota.FailurePolicy)
	}
	if c.Quota.Limit <= 0 {
		return fmt.Errorf("quota.limit: must be positive")
	}
	if c.Quota.Window <= 0 {
		return fmt.Errorf("quota.window: must be positive")
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		switch p.Type {
		case "", "openai", "anthropic":
		default:
			return fmt.Errorf("providers[%d]: unknown type %q", i, p.Type)
		}
	}
	seen := make(map[string]bool, len(c.Features))
	for i, f := range c.Features {
		if !featureName.MatchString(f.Name) {
			return fmt.Errorf("features[%d]: invalid name %q", i, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("features[%d]: duplicate name %q", i, f.Name)
		}
		seen[f.Name] = true
		if f.Limit < 0 || f.Window < 0 || f.TTL < 0 {
			return fmt.Errorf("features[%d]: limit, window and ttl must not be negative", i)
		}
	}
	return nil
}

// Feature returns the named feature with quota and cache defaults applied.
func (c *Config) Feature(name string) (FeatureConfig, bool) {
	for _, f := range c.Features {
		if f.Name != name {
			continue
		}
		if f.Limit == 0 {
			f.Limit = c.Quota.Limit
		}
		if f.Window == 0 {
			f.Window = c.Quota.Window
		}
		if f.TTL == 0 {
			f.TTL = c.Cache.TTL
		}
		if f.MaxInputChars == 0 {
			f.MaxInputChars = c.Cache.MaxInputChars
		}
		return f, true
	}
	return FeatureConfig{}, false
}
