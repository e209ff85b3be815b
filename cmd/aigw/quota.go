package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/config"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/kv"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/quota"
	"github.com/spf13/cobra"
)

func newQuotaCmd() *cobra.Command {
	var (
		configPath string
		user       string
	)

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and reset per-user quota windows",
	}

	open := func() (*config.Config, kv.Store, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Store.Backend == config.BackendMemory {
			return nil, nil, fmt.Errorf("the memory backend lives inside the server process; use the redis or sqlite backend")
		}
		if user == "" {
			return nil, nil, fmt.Errorf("--user is required")
		}
		store, err := openStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return cfg, store, nil
	}

	statusCmd := &cobra.Command{
		Use:   "status [feature...]",
		Short: "Show a user's usage in the current window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			features := args
			if len(features) == 0 {
				for _, f := range cfg.Features {
					features = append(features, f.Name)
				}
			}
			if len(features) == 0 {
				fmt.Println("No features configured.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FEATURE\tUSED\tLIMIT\tWINDOW\tRESETS IN")
			for _, name := range features {
				f, ok := cfg.Feature(name)
				if !ok {
					return fmt.Errorf("unknown feature %q", name)
				}
				l := quota.New(store, quota.WithWindow(f.Window))
				win, err := l.Peek(context.Background(), quota.Identity(f.Name, user), f.Limit)
				if err != nil {
					return err
				}
				resets := "-"
				if win.Count > 0 {
					resets = time.Until(win.WindowStart.Add(win.WindowDuration)).Round(time.Second).String()
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", f.Name, win.Count, f.Limit, f.Window, resets)
			}
			return w.Flush()
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset <feature>",
		Short: "Clear a user's current window for a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			f, ok := cfg.Feature(args[0])
			if !ok {
				return fmt.Errorf("unknown feature %q", args[0])
			}
			if err := quota.New(store).Reset(context.Background(), quota.Identity(f.Name, user)); err != nil {
				return err
			}
			fmt.Printf("Quota window for %s on %s reset.\n", user, f.Name)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "aigw.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&user, "user", "", "user id (X-User-ID)")
	cmd.AddCommand(statusCmd, resetCmd)
	return cmd
}
