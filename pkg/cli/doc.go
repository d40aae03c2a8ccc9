/*
Package cli provides command-line helpers for the tollgate command.

Output Formatting:

Command results print as text, JSON or an aligned table:

	formatter := cli.NewFormatter(cli.FormatTable)
	if err := formatter.FormatTo(os.Stdout, tickets); err != nil {
		return err
	}

Table output needs a value implementing Table; anything else falls back to
text.

Progress Reporting:

For long-running exports, use the progress reporter:

	progress := cli.NewProgressReporter(os.Stderr, "tickets")
	progress.Start(total)
	for i := range total {
		progress.Update(i + 1)
	}
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Exit Codes:

ExitCode maps a command error to the process exit status: 2 for invalid
configuration, 1 for everything else.
*/
package cli
