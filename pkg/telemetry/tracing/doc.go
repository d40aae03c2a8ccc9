// Package tracing wraps OpenTelemetry for per-vehicle check spans.
//
// When tracing is disabled the Tracer hands out noop spans, so callers create
// and end spans unconditionally. When enabled, spans are batched to an OTLP
// gRPC collector and sampled by trace ID ratio.
package tracing
