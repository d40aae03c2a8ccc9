// Package logging builds the process logger on top of log/slog.
//
// The logger is configured once at startup and installed as the slog default;
// components then derive their own child logger with
//
//	logger := slog.Default().With("component", "pipeline.dispatcher")
//
// Context helpers attach request, batch and vehicle identifiers so log lines
// emitted deep in the pipeline can be correlated with the batch that produced
// them.
package logging
