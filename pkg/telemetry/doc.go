// Package telemetry groups the observability packages of tollgate:
// structured logging (logging), Prometheus metrics (metrics), liveness and
// readiness checks (health) and OpenTelemetry tracing (tracing).
package telemetry
