package main

import (
	"context"
	"fmt"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/cache"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/config"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache",
	}

	open := func() (*cache.Cache, kv.Store, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Store.Backend == config.BackendMemory {
			return nil, nil, fmt.Errorf("the memory backend lives inside the server process; query GET /v1/ai/cache/stats instead")
		}
		store, err := openStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return cache.New(store, cache.WithTTL(cfg.Cache.TTL)), store, nil
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, store, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := c.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nTTL:     %s\n", stats.Entries, c.TTL())
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, store, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := c.Clear(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d cache entries.\n", n)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "aigw.yaml", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
