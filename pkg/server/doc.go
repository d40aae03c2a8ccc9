// Package server exposes the running pipeline over HTTP.
//
// Routes:
//
//	GET /v1/status           worker board, queue depth and running statistics
//	GET /v1/stats            running statistics
//	GET /v1/stats/history    persisted statistics snapshots
//	GET /v1/tickets          ticket query (plate, kind, from, to, min_fine, ...)
//	GET /v1/tickets/export   the same query rendered as CSV or JSON
//	GET /v1/events           server-sent event stream of pipeline events
//	GET /health, /ready      liveness and readiness probes
//	GET /metrics             Prometheus metrics
//
// The status endpoint is what `tollgate status` polls to render the live
// worker table.
//
// # Basic Usage
//
//	srv := server.New(server.Options{
//	    Config:   &cfg.Server,
//	    Pipeline: p,
//	    Tickets:  storage,
//	    Health:   checker,
//	    Metrics:  collector,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled or Shutdown is called. Signal handling
// belongs to the caller.
package server
