package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/server"
)

// DefaultStatusInterval is how often the status command polls the board.
const DefaultStatusInterval = 500 * time.Millisecond

const clearScreen = "\033[H\033[2J"

var statusFlags struct {
	addr     string
	interval time.Duration
	once     bool
	output   string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Watch the worker board of a running pipeline",
	Long: `Poll GET /v1/status of a running 'tollgate run' and render the worker
board with the running statistics. The screen is redrawn on every poll until
interrupted.

Examples:
  # Watch the local pipeline
  tollgate status

  # Print one snapshot as JSON
  tollgate status --addr 10.0.0.5:8080 --once --output json`,
	Args: cobra.NoArgs,
	RunE: watchStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.addr, "addr", "", "API address (uses server.listen_address if not specified)")
	statusCmd.Flags().DurationVar(&statusFlags.interval, "interval", DefaultStatusInterval, "poll interval")
	statusCmd.Flags().BoolVar(&statusFlags.once, "once", false, "print one snapshot and exit")
	statusCmd.Flags().StringVarP(&statusFlags.output, "output", "o", "table", "output format: table, json")
}

func watchStatus(cmd *cobra.Command, args []string) error {
	addr := statusFlags.addr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Server.ListenAddress
	}
	if statusFlags.interval <= 0 {
		return fmt.Errorf("invalid --interval %s: must be positive", statusFlags.interval)
	}

	client := &statusClient{
		url:  statusURL(addr),
		http: &http.Client{Timeout: 5 * time.Second},
	}
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if statusFlags.once {
		st, err := client.fetch(ctx)
		if err != nil {
			return cli.NewCommandError("status", err)
		}
		return writeStatus(w, statusFlags.output, st)
	}

	ticker := time.NewTicker(statusFlags.interval)
	defer ticker.Stop()
	for {
		st, err := client.fetch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(w, clearScreen)
		if err != nil {
			fmt.Fprintf(w, "%s unreachable: %v\n", client.url, err)
		} else if err := writeStatus(w, statusFlags.output, st); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// statusURL turns a listen address such as ":8080" into a status URL.
func statusURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/") + "/v1/status"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/v1/status"
}

type statusClient struct {
	url  string
	http *http.Client
}

func (c *statusClient) fetch(ctx context.Context) (*server.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var st server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &st, nil
}

func writeStatus(w io.Writer, format string, st *server.StatusResponse) error {
	if format == "json" {
		return render(w, format, nil, st)
	}

	state := "stopped"
	if st.Running {
		state = "running"
	}
	fmt.Fprintf(w, "Tollgate %s  workers %d  queued %d  at %s\n\n",
		state, st.Workers, st.QueueDepth, st.Timestamp.Local().Format(tableTime))
	if err := render(w, format, boardTable{view: st.Board, now: st.Timestamp}, st.Board); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nprocessed %d  violations %d (%.1f%%)  too slow %d  speeding %d  avg %s  max %s  fines %s\n",
		st.Stats.TotalProcessed,
		st.Stats.TotalViolations,
		st.Stats.ViolationRate,
		st.Stats.TooSlow,
		st.Stats.Speeding,
		formatSpeed(st.Stats.AvgSpeed),
		formatSpeed(st.Stats.MaxSpeed),
		st.Stats.TotalFines.StringFixed(2),
	)
	return nil
}
