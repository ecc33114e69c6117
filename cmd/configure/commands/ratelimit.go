package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benvon/portfolio-chat/internal/database"
	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/ratelimit"
	"github.com/spf13/cobra"
)

// NewRatelimitCmd creates the ratelimit command: burst rate configuration and chat quota records.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limiting",
		Long:  "Manage the burst rate (e.g. 5-S, 100-M) and inspect or reset hourly chat quota records stored in the database.",
	}
	cmd.AddCommand(newBurstCmd())
	cmd.AddCommand(newRecordsCmd())
	return cmd
}

func newBurstCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "burst",
		Short: "Show or update the burst rate",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the current burst rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			c, err := database.NewRatelimitConfigRepository(db).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("get ratelimit config: %w", err)
			}
			if c == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No burst rate in database. The server default applies until 'ratelimit burst set' is used.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Burst rate configuration:")
			fmt.Fprintf(cmd.OutOrStdout(), "  Rate: %s\n", c.Rate)
			return nil
		},
	})

	var rate string
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the burst rate",
		Long:  "Update the burst rate (e.g. 5-S, 100-M, 1000-H). Running servers pick it up within a minute.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
			}
			_, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewRatelimitConfigRepository(db).Set(cmd.Context(), &models.RatelimitConfig{Rate: rate}); err != nil {
				return fmt.Errorf("set ratelimit config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Burst rate updated.")
			return nil
		},
	}
	set.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	cmd.AddCommand(set)
	return cmd
}

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and maintain chat quota records",
		Long:  "Inspect and maintain the per-client hourly chat quota records (database backend only).",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent quota windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			records, err := database.NewRateLimitStore(db).List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list rate limit records: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No rate limit records.")
				return nil
			}
			now := time.Now()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tCOUNT\tWINDOW START\tSTATE")
			for _, rec := range records {
				start := rec.WindowStartTime()
				state := "active"
				if now.Sub(start) > cfg.ChatRateLimitWindow {
					state = "expired"
				} else if rec.Count >= cfg.ChatRateLimitMax {
					state = "exhausted"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", rec.Key, rec.Count, start.UTC().Format(time.RFC3339), state)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 100, "Maximum number of records to show")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <client-ip>",
		Short: "Clear the quota for one client",
		Long:  "Delete the quota record for a client IP (or an already sanitized key) so its next request opens a fresh window.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ratelimit.SanitizeKey(strings.TrimSpace(args[0]))
			if key == "" {
				return fmt.Errorf("a client identifier is required")
			}
			_, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			deleted, err := database.NewRateLimitStore(db).Delete(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("reset rate limit record: %w", err)
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "No record for %s.\n", key)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Quota reset for %s.\n", key)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete records whose window has ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			n, err := ratelimit.NewGarbageCollector(database.NewRateLimitStore(db), 0, cfg.ChatRateLimitWindow, nil).Collect(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune rate limit records: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired records.\n", n)
			return nil
		},
	})
	return cmd
}
