package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/pipeline"
	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/server"
	"mercator-hq/tollgate/pkg/source"
	"mercator-hq/tollgate/pkg/source/synthetic"
	"mercator-hq/tollgate/pkg/stats"
	"mercator-hq/tollgate/pkg/telemetry/health"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
	"mercator-hq/tollgate/pkg/tickets/recorder"
	"mercator-hq/tollgate/pkg/tickets/retention"
	"mercator-hq/tollgate/pkg/tickets/storage"
)

// healthCheckTimeout bounds each readiness check.
const healthCheckTimeout = 2 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	workers       int
	duration      time.Duration
	seed          uint64
	noSimulation  bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the enforcement pipeline",
	Long: `Start the enforcement pipeline with the specified configuration.

The synthetic source submits a batch of vehicles every interval, the worker
pool checks each one against the speed limits, tickets are written to the
configured store and the HTTP API serves status, tickets and metrics.

SIGINT or SIGTERM stops the source, drains queued vehicles within
pipeline.shutdown_timeout and prints the final statistics.

Examples:
  # Start with the defaults
  tollgate run

  # Start with a config file and a fixed seed
  tollgate run --config tollgate.yaml --seed 42

  # Run for one minute with ten workers
  tollgate run --workers 10 --duration 1m

  # Validate config without starting
  tollgate run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().IntVarP(&runFlags.workers, "workers", "w", 0, "override number of workers")
	runCmd.Flags().DurationVar(&runFlags.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	runCmd.Flags().Uint64Var(&runFlags.seed, "seed", 0, "override simulation seed")
	runCmd.Flags().BoolVar(&runFlags.noSimulation, "no-simulation", false, "do not start the synthetic source")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.workers != 0 {
		cfg.Pipeline.Workers = runFlags.workers
	}
	if runFlags.seed != 0 {
		cfg.Simulation.Seed = runFlags.seed
	}
	if runFlags.noSimulation {
		cfg.Simulation.Enabled = false
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return err
	}
	log := logger.Slog()

	ruleCfg, err := rules.FromConfig(&cfg.Rules)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}
	printBanner(out, cfg)

	ctx := cmd.Context()
	if runFlags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFlags.duration)
		defer cancel()
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.Timeout+time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	ticketStore, err := storage.Open(&cfg.Tickets)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to open ticket storage: %w", err))
	}
	defer ticketStore.Close()
	rec := recorder.NewRecorder(ticketStore, recorder.FromConfig(&cfg.Tickets.Recorder), collector)
	fmt.Fprintf(out, "✓ Ticket store initialized (%s)\n", cfg.Tickets.Backend)

	var (
		history     stats.Store
		snapshotter *stats.Snapshotter
	)
	if cfg.Stats.Enabled {
		sqliteStore, err := stats.NewSQLiteStore(stats.SQLiteConfig{
			Path:        cfg.Stats.Path,
			BusyTimeout: cfg.Stats.BusyTimeout,
		})
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to open statistics database: %w", err))
		}
		defer sqliteStore.Close()
		history = sqliteStore
		snapshotter = stats.NewSnapshotter(sqliteStore, cfg.Stats.Schedule)
		fmt.Fprintf(out, "✓ Statistics history enabled (%s)\n", cfg.Stats.Path)
	}

	opts := pipeline.OptionsFromConfig(&cfg.Pipeline, ruleCfg)
	opts.Tickets = rec
	opts.Metrics = collector
	opts.Tracer = tracer
	opts.Logger = log
	if snapshotter != nil {
		opts.Stats = snapshotter
	}
	p, err := pipeline.New(opts)
	if err != nil {
		rec.Close()
		return err
	}
	if err := p.Start(ctx); err != nil {
		rec.Close()
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintf(out, "✓ Pipeline started (%d workers)\n", p.Workers())

	checker := health.New(healthCheckTimeout)
	checker.RegisterCheck("pipeline", func(ctx context.Context) error {
		if !p.Running() {
			return errors.New("pipeline is not running")
		}
		return nil
	})
	if pinger, ok := ticketStore.(interface{ Ping(context.Context) error }); ok {
		checker.RegisterCheck("tickets", pinger.Ping)
	}

	pruner := retention.NewPruner(ticketStore, retention.FromConfig(&cfg.Tickets.Retention))
	if err := pruner.Start(ctx); err != nil {
		log.Warn("failed to start retention scheduler", "error", err)
	} else if next := pruner.NextPruning(); next != nil {
		log.Debug("ticket retention scheduler started", "next_pruning", next)
	}
	defer pruner.Stop()

	if snapshotter != nil {
		if err := snapshotter.Start(ctx, p); err != nil {
			log.Warn("failed to start statistics snapshots", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Simulation.Enabled {
		gen, err := synthetic.NewGenerator(synthetic.FromConfig(&cfg.Simulation), synthetic.NewRegistry(synthetic.DefaultRegistrySize))
		if err != nil {
			return stopOnError(p, cfg, err)
		}
		src, err := source.New(source.FromConfig(&cfg.Simulation), gen, p, log)
		if err != nil {
			return stopOnError(p, cfg, err)
		}
		g.Go(func() error { return src.Run(gctx) })
		fmt.Fprintf(out, "✓ Synthetic source started (every %s)\n", cfg.Simulation.Interval)
	}

	if cfg.Server.Enabled {
		srv := server.New(server.Options{
			Config:   &cfg.Server,
			Export:   &cfg.Tickets.Export,
			Pipeline: p,
			Tickets:  ticketStore,
			History:  history,
			Health:   checker,
			Metrics:  collector,
			Logger:   log,
		})
		checker.RegisterCheck("server", srv.Health)
		g.Go(func() error {
			if err := srv.Start(gctx); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		fmt.Fprintf(out, "✓ API listening on %s (status, tickets, events, %s)\n",
			cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}

	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	runErr := g.Wait()
	if runErr != nil {
		log.Error("run failed, stopping pipeline", "error", runErr)
	} else {
		fmt.Fprintln(out, "\nShutting down gracefully...")
	}

	if snapshotter != nil {
		snapshotter.Stop()
	}
	stopErr := stopPipeline(p, cfg)

	printFinalStats(out, p)
	if err := errors.Join(runErr, stopErr); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// stopPipeline drains the pipeline on a context that outlives the run
// context, giving Stop its own timeout plus time to flush.
func stopPipeline(p *pipeline.Pipeline, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Pipeline.ShutdownTimeout)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		slog.Error("pipeline stop reported errors", "error", err)
		return err
	}
	return nil
}

func stopOnError(p *pipeline.Pipeline, cfg *config.Config, err error) error {
	return cli.NewCommandError("run", errors.Join(err, stopPipeline(p, cfg)))
}

func printBanner(w io.Writer, cfg *config.Config) {
	from := cfgFile
	if from == "" {
		from = "built-in defaults"
	}
	fmt.Fprintf(w, "Tollgate v%s\n", Version)
	fmt.Fprintf(w, "Loading configuration from: %s\n", from)
	fmt.Fprintln(w, "✓ Configuration loaded")

	slog.Debug("speed limits",
		"min", cfg.Rules.MinSpeedLimit,
		"max", cfg.Rules.SpeedLimit,
		"type_limits", cfg.Rules.TypeSpeedLimits,
	)
}

func printFinalStats(w io.Writer, p *pipeline.Pipeline) {
	fmt.Fprintln(w, "\nFinal statistics:")
	if err := cli.NewFormatter(cli.FormatTable).FormatTo(w, statsFields(p.Stats())); err != nil {
		slog.Warn("failed to print statistics", "error", err)
	}
}
