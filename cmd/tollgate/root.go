package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tollgate",
	Short: "Tollgate - toll-road speed enforcement pipeline",
	Long: `Tollgate checks vehicle observations against speed limits on a pool of
concurrent workers and issues fines for violations.

It provides:
  - A bounded check queue and a fixed worker pool with a live status board
  - Banded fines with STNK/SIM penalties, capped at a maximum fine
  - Ticket storage (JSON Lines, SQLite or memory) with export and retention
  - Statistics snapshots, Prometheus metrics and an HTTP status API`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a status derived from the error.
// Commands observe SIGINT/SIGTERM through cmd.Context().
func Execute() {
	ctx, stop := cli.SetupSignalHandler()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the --config file, applies TOLLGATE_* environment
// overrides and validates the result.
func loadConfig() (*config.Config, error) {
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg *config.LoggingConfig) (*logging.Logger, error) {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetDefault()
	return logger, nil
}
