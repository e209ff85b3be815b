package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/audit"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/models"
	"github.com/SouFien19/Ai-Resume-Builder-sub005/pkg/quota"
	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the log of gateway outcomes (hits, misses, throttles, upstream failures)",
	}

	withLogger := func(fn func(context.Context, *audit.Logger) error) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		l, err := audit.New(cfg.Audit)
		if err != nil {
			return fmt.Errorf("open audit db %s: %w", cfg.Audit.DBPath, err)
		}
		defer func() { _ = l.Close() }()
		return fn(context.Background(), l)
	}

	var (
		q        listQuery
		statsCmd = &cobra.Command{
			Use:   "stats",
			Short: "Count outcomes per feature and status",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withLogger(func(ctx context.Context, l *audit.Logger) error {
					stats, err := l.Stats(ctx)
					if err != nil {
						return err
					}
					return printAuditStats(os.Stdout, stats)
				})
			},
		}
		cleanupCmd = &cobra.Command{
			Use:   "cleanup",
			Short: "Delete entries older than audit.retention_days",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withLogger(func(ctx context.Context, l *audit.Logger) error {
					n, err := l.Cleanup(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("Deleted %d audit entries.\n", n)
					return nil
				})
			},
		}
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent gateway outcomes",
		Example: `  aigw audit list --feature summary --status Throttled
  aigw audit list --feature ats-score --user 42 --since 2025-03-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := q.opts()
			if err != nil {
				return err
			}
			return withLogger(func(ctx context.Context, l *audit.Logger) error {
				entries, err := l.Query(ctx, opts)
				if err != nil {
					return err
				}
				return printAuditEntries(os.Stdout, entries)
			})
		},
	}
	listCmd.Flags().StringVar(&q.feature, "feature", "", "filter by feature")
	listCmd.Flags().StringVar(&q.user, "user", "", "filter by user id (X-User-ID); requires --feature")
	listCmd.Flags().StringVar(&q.status, "status", "", "filter by status (Admitted-Hit, Admitted-Miss, Throttled, UpstreamFailed)")
	listCmd.Flags().StringVar(&q.since, "since", "", "start date (YYYY-MM-DD)")
	listCmd.Flags().IntVar(&q.limit, "limit", 50, "max entries to return")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to aigw config file")
	cmd.AddCommand(listCmd, statsCmd, cleanupCmd)
	return cmd
}

// listQuery holds the raw flags of audit list.
type listQuery struct {
	feature string
	user    string
	status  string
	since   string
	limit   int
}

// opts turns the flags into query options. Identities are stored hashed, so
// a user filter is hashed the same way the server hashes identities.
func (q listQuery) opts() (models.AuditQueryOpts, error) {
	opts := models.AuditQueryOpts{
		Feature: q.feature,
		Limit:   q.limit,
	}
	if q.user != "" {
		if q.feature == "" {
			return opts, fmt.Errorf("--user requires --feature: quota identities are per feature")
		}
		opts.IdentityHash = audit.HashIdentity(quota.Identity(q.feature, q.user))
	}
	switch s := models.GatewayStatus(q.status); s {
	case "", models.StatusAdmittedHit, models.StatusAdmittedMiss, models.StatusThrottled, models.StatusUpstreamFailed:
		opts.Status = s
	default:
		return opts, fmt.Errorf("unknown --status %q", q.status)
	}
	if q.since != "" {
		t, err := time.Parse("2006-01-02", q.since)
		if err != nil {
			return opts, fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
		}
		opts.Since = t
	}
	return opts, nil
}

func printAuditEntries(out io.Writer, entries []models.AuditEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No audit entries found.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tFEATURE\tIDENTITY\tSTATUS\tCACHE\tLATENCY\tREQUEST ID\tERROR")
	for _, e := range entries {
		cacheStatus := e.CacheStatus
		if cacheStatus == "" {
			cacheStatus = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Feature, e.IdentityHash,
			e.Status, cacheStatus, e.LatencyMs, e.RequestID, e.Error)
	}
	return w.Flush()
}

// printAuditStats prints one row per feature with a column per status.
func printAuditStats(out io.Writer, stats []models.AuditStat) error {
	if len(stats) == 0 {
		_, err := fmt.Fprintln(out, "No audit stats found.")
		return err
	}
	statuses := []models.GatewayStatus{
		models.StatusAdmittedHit, models.StatusAdmittedMiss,
		models.StatusThrottled, models.StatusUpstreamFailed,
	}
	counts := make(map[string]map[models.GatewayStatus]int)
	var features []string
	for _, s := range stats {
		if counts[s.Feature] == nil {
			counts[s.Feature] = make(map[models.GatewayStatus]int)
			features = append(features, s.Feature)
		}
		counts[s.Feature][s.Status] += s.Count
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tHIT\tMISS\tTHROTTLED\tFAILED\tHIT RATE")
	for _, f := range features {
		c := counts[f]
		fmt.Fprintf(w, "%s", f)
		for _, st := range statuses {
			fmt.Fprintf(w, "\t%d", c[st])
		}
		rate := "-"
		if served := c[models.StatusAdmittedHit] + c[models.StatusAdmittedMiss]; served > 0 {
			rate = fmt.Sprintf("%.0f%%", 100*float64(c[models.StatusAdmittedHit])/float64(served))
		}
		fmt.Fprintf(w, "\t%s\n", rate)
	}
	return w.Flush()
}
