package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/audit"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/cache"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/gateway"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/provider"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/quota"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the AI gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if sw, ok := store.(kv.Sweeper); ok {
				kv.StartJanitor(ctx, sw, cfg.Store.SweepEvery)
			}

			ledger := quota.New(store,
				quota.WithWindow(cfg.Quota.Window),
				quota.WithFailurePolicy(cfg.Quota.FailurePolicy),
			)

			var c *cache.Cache
			if cfg.Cache.Enabled {
				c = cache.New(store,
					cache.WithTTL(cfg.Cache.TTL),
					cache.WithMaxInputChars(cfg.Cache.MaxInputChars),
				)
			}

			chain, err := provider.FromConfig(cfg, &http.Client{Timeout: timeout})
			if err != nil {
				return fmt.Errorf("init providers: %w", err)
			}
			if !provider.Configured(cfg) {
				log.Printf("warning: no provider has an API key, AI features will answer 503")
			}

			var auditor *audit.Logger
			if cfg.Audit.Enabled {
				auditor, err = audit.New(cfg.Audit)
				if err != nil {
					return fmt.Errorf("init audit: %w", err)
				}
				defer func() { _ = auditor.Close() }()
			}

			gw := gateway.New(ledger, c, chain,
				gateway.WithCoalesce(cfg.Cache.Coalesce),
				gateway.WithUpstreamTimeout(timeout),
			)
			srv, err := server.New(cfg, gw, c, store, auditor)
			if err != nil {
				return err
			}

			log.Printf("starting aigw: backend=%s failure_policy=%s providers=%d", cfg.Store.Backend, ledger.Policy(), chain.Len())
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "aigw.yaml", "path to config file")
	cmd.Flags().DurationVar(&timeout, "upstream-timeout", 60*time.Second, "timeout for a single upstream call")
	return cmd
}
