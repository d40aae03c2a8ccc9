package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/tickets/export"
	"mercator-hq/tollgate/pkg/tickets/storage"
	"mercator-hq/tollgate/pkg/traffic"
)

// ticketFilterFlags are shared by every tickets subcommand.
type ticketFilterFlags struct {
	backend string
	plate   string
	vtype   string
	kind    string
	band    string
	from    string
	to      string
	minFine float64
	maxFine float64
}

var ticketFlags struct {
	filter ticketFilterFlags
	limit  int
	offset int
	sort   string
	order  string

	queryOutput   string
	tailOutput    string
	summaryOutput string

	// export
	format string
	file   string

	// tail
	fromStart bool
}

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Query, export and follow issued tickets",
	Long: `Access the ticket store written by 'tollgate run'.

Subcommands:
  query    - List tickets matching filters
  export   - Export matching tickets as JSON or CSV
  tail     - Follow the JSON Lines ticket file as tickets are issued
  summary  - Aggregate fines and speeds over matching tickets

Time filters use RFC 3339 ("2025-11-19T00:00:00Z").`,
}

var ticketsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List tickets matching filters",
	Long: `List tickets matching filters, newest first by default.

Examples:
  # The 20 most recent speeding tickets
  tollgate tickets query --kind SPEEDING --limit 20

  # Tickets for one plate, as JSON
  tollgate tickets query --plate "B 1234 XYZ" --output json

  # Highest fines issued today
  tollgate tickets query --from 2025-11-20T00:00:00Z --sort total_fine`,
	Args: cobra.NoArgs,
	RunE: queryTickets,
}

var ticketsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matching tickets as JSON or CSV",
	Long: `Export every ticket matching the filters.

Examples:
  # Export all tickets to a CSV file
  tollgate tickets export --format csv --file tickets.csv

  # Export truck tickets as JSON to stdout
  tollgate tickets export --type truck`,
	Args: cobra.NoArgs,
	RunE: exportTickets,
}

var ticketsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the ticket file as tickets are issued",
	Long: `Print tickets as they are appended to the JSON Lines ticket file.
Only the jsonl backend can be followed. Filters apply to each new ticket.

Examples:
  # Follow new tickets
  tollgate tickets tail

  # Print the existing file first, then follow speeding tickets only
  tollgate tickets tail --from-start --kind SPEEDING`,
	Args: cobra.NoArgs,
	RunE: tailTickets,
}

var ticketsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate fines and speeds over matching tickets",
	Long: `Summarize matching tickets: counts per kind, band and vehicle type, fine
totals, speed percentiles and repeat offenders.

Examples:
  # Summary of all stored tickets
  tollgate tickets summary

  # Summary for the last day as JSON
  tollgate tickets summary --from 2025-11-19T00:00:00Z --output json`,
	Args: cobra.NoArgs,
	RunE: summarizeTickets,
}

func init() {
	rootCmd.AddCommand(ticketsCmd)
	ticketsCmd.AddCommand(ticketsQueryCmd, ticketsExportCmd, ticketsTailCmd, ticketsSummaryCmd)

	f := &ticketFlags.filter
	pf := ticketsCmd.PersistentFlags()
	pf.StringVar(&f.backend, "backend", "", "storage backend: jsonl, sqlite, memory (uses config if not specified)")
	pf.StringVar(&f.plate, "plate", "", "filter by license plate")
	pf.StringVar(&f.vtype, "type", "", "filter by vehicle type")
	pf.StringVar(&f.kind, "kind", "", "filter by violation kind: TOO_SLOW, SPEEDING")
	pf.StringVar(&f.band, "band", "", "filter by fine band")
	pf.StringVar(&f.from, "from", "", "issued at or after (RFC 3339)")
	pf.StringVar(&f.to, "to", "", "issued at or before (RFC 3339)")
	pf.Float64Var(&f.minFine, "min-fine", 0, "minimum total fine")
	pf.Float64Var(&f.maxFine, "max-fine", 0, "maximum total fine")

	ticketsQueryCmd.Flags().IntVar(&ticketFlags.limit, "limit", tickets.DefaultLimit, "maximum tickets to return")
	ticketsQueryCmd.Flags().IntVar(&ticketFlags.offset, "offset", 0, "tickets to skip")
	ticketsQueryCmd.Flags().StringVar(&ticketFlags.sort, "sort", "issued_at", "sort field: issued_at, total_fine, speed")
	ticketsQueryCmd.Flags().StringVar(&ticketFlags.order, "order", "desc", "sort order: asc, desc")
	ticketsQueryCmd.Flags().StringVarP(&ticketFlags.queryOutput, "output", "o", "table", "output format: table, json")

	ticketsExportCmd.Flags().StringVar(&ticketFlags.format, "format", "json", "export format: json, csv")
	ticketsExportCmd.Flags().StringVar(&ticketFlags.file, "file", "", "write to file instead of stdout")

	ticketsTailCmd.Flags().BoolVar(&ticketFlags.fromStart, "from-start", false, "print tickets already in the file first")
	ticketsTailCmd.Flags().StringVarP(&ticketFlags.tailOutput, "output", "o", "text", "output format: text, json")

	ticketsSummaryCmd.Flags().StringVarP(&ticketFlags.summaryOutput, "output", "o", "table", "output format: table, json")
}

// buildQuery maps the filter flags onto a validated query.
func buildQuery(cmd *cobra.Command, f ticketFilterFlags) (*tickets.Query, error) {
	q := &tickets.Query{
		LicensePlate: f.plate,
		VehicleType:  f.vtype,
		Kind:         f.kind,
		Band:         f.band,
	}

	var err error
	if q.StartTime, err = parseFlagTime("from", f.from); err != nil {
		return nil, err
	}
	if q.EndTime, err = parseFlagTime("to", f.to); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("min-fine") {
		v := f.minFine
		q.MinFine = &v
	}
	if cmd.Flags().Changed("max-fine") {
		v := f.maxFine
		q.MaxFine = &v
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func parseFlagTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: expected RFC 3339 time, got %q", name, value)
	}
	return &t, nil
}

// openTickets loads the configuration and opens the ticket store,
// honoring --backend.
func openTickets() (*config.Config, tickets.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if ticketFlags.filter.backend != "" {
		cfg.Tickets.Backend = ticketFlags.filter.backend
	}
	store, err := storage.Open(&cfg.Tickets)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ticket storage: %w", err)
	}
	return cfg, store, nil
}

func queryTickets(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(cmd, ticketFlags.filter)
	if err != nil {
		return err
	}
	q.Limit = ticketFlags.limit
	q.Offset = ticketFlags.offset
	q.SortBy = ticketFlags.sort
	q.SortOrder = ticketFlags.order
	q.ApplyDefaults()
	if err := q.Validate(); err != nil {
		return err
	}

	_, store, err := openTickets()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	list, err := store.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("tickets query", err)
	}
	total, err := store.Count(ctx, q)
	if err != nil {
		return cli.NewCommandError("tickets query", err)
	}

	w := cmd.OutOrStdout()
	if ticketFlags.queryOutput == "json" {
		return render(w, ticketFlags.queryOutput, nil, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No tickets found.")
		return nil
	}
	if err := render(w, ticketFlags.queryOutput, ticketTable(list), list); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nShowing %d of %d tickets\n", len(list), total)
	return nil
}

// fetchAll pages through every ticket matching q, oldest first, reporting
// progress when p is not nil.
func fetchAll(ctx context.Context, store tickets.Storage, q *tickets.Query, p cli.ProgressReporter) ([]*traffic.Ticket, error) {
	total, err := store.Count(ctx, q)
	if err != nil {
		return nil, err
	}
	if p != nil {
		p.Start(total)
	}

	page := *q
	page.Limit = tickets.MaxLimit
	page.SortBy = "issued_at"
	page.SortOrder = "asc"

	all := make([]*traffic.Ticket, 0, total)
	for page.Offset = 0; ; page.Offset += page.Limit {
		list, err := store.Query(ctx, &page)
		if err != nil {
			if p != nil {
				p.Error(err)
			}
			return nil, err
		}
		all = append(all, list...)
		if p != nil {
			p.Update(int64(len(all)))
		}
		if len(list) < page.Limit {
			break
		}
	}
	if p != nil {
		p.Finish()
	}
	return all, nil
}

func exportTickets(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(cmd, ticketFlags.filter)
	if err != nil {
		return err
	}

	cfg, store, err := openTickets()
	if err != nil {
		return err
	}
	defer store.Close()

	exporter, err := export.New(ticketFlags.format, &cfg.Tickets.Export)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	var progress cli.ProgressReporter
	if ticketFlags.file != "" {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "tickets")
	}

	ctx := cmd.Context()
	list, err := fetchAll(ctx, store, q, progress)
	if err != nil {
		return cli.NewCommandError("tickets export", err)
	}

	if ticketFlags.file != "" {
		f, err := os.Create(ticketFlags.file)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := exporter.Export(ctx, list, w); err != nil {
		return cli.NewCommandError("tickets export", err)
	}
	if ticketFlags.file != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d tickets to %s\n", len(list), ticketFlags.file)
	}
	return nil
}
