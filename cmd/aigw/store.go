package main

import (
	"fmt"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/config"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv/memory"
	kvredis "github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv/redis"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv/sqlite"
	"github.com/redis/go-redis/v9"
)

// openStore builds the configured kv backend.
func openStore(cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		return kvredis.New(client, kvredis.WithPrefix(cfg.Store.Redis.Prefix)), nil
	case config.BackendSQLite:
		s, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// loadConfig returns defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
