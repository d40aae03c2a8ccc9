package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/stats"
)

var statsFlags struct {
	from   string
	to     string
	limit  int
	output string
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Inspect saved statistics",
}

var statsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved statistics snapshots",
	Long: `List the statistics snapshots saved by 'tollgate run', newest first.
Snapshots are taken on the configured schedule and once at shutdown.

Examples:
  # The last 20 snapshots
  tollgate stats history --limit 20

  # Snapshots for one day as JSON
  tollgate stats history --from 2025-11-19T00:00:00Z --to 2025-11-20T00:00:00Z --output json`,
	Args: cobra.NoArgs,
	RunE: statsHistory,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsHistoryCmd)

	statsHistoryCmd.Flags().StringVar(&statsFlags.from, "from", "", "taken at or after (RFC 3339)")
	statsHistoryCmd.Flags().StringVar(&statsFlags.to, "to", "", "taken at or before (RFC 3339)")
	statsHistoryCmd.Flags().IntVar(&statsFlags.limit, "limit", 50, "maximum snapshots to list (0 for all)")
	statsHistoryCmd.Flags().StringVarP(&statsFlags.output, "output", "o", "table", "output format: table, json")
}

func statsHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r := stats.Range{Limit: statsFlags.limit}
	from, err := parseFlagTime("from", statsFlags.from)
	if err != nil {
		return err
	}
	to, err := parseFlagTime("to", statsFlags.to)
	if err != nil {
		return err
	}
	if from != nil {
		r.From = *from
	}
	if to != nil {
		r.To = *to
	}

	store, err := stats.NewSQLiteStore(stats.SQLiteConfig{
		Path:        cfg.Stats.Path,
		BusyTimeout: cfg.Stats.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open statistics database: %w", err)
	}
	defer store.Close()

	snaps, err := store.List(cmd.Context(), r)
	if err != nil {
		return cli.NewCommandError("stats history", err)
	}

	w := cmd.OutOrStdout()
	if len(snaps) == 0 && statsFlags.output != "json" {
		fmt.Fprintln(w, "No snapshots found.")
		return nil
	}
	return render(w, statsFlags.output, historyTable(snaps), snaps)
}
