package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/tollgate/pkg/config"
)

// Collector is the single entry point for recording pipeline metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	checks   *CheckMetrics
	pipeline *PipelineMetrics
	tickets  *TicketMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true}
//	collector := metrics.NewCollector(cfg, nil)
//	mux.Handle("/metrics", collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Set defaults if not specified
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.CheckDurationBuckets) == 0 {
		cfg.CheckDurationBuckets = append([]float64(nil), config.DefaultCheckDurationBuckets...)
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		checks:   NewCheckMetrics(cfg, registry),
		pipeline: NewPipelineMetrics(cfg, registry),
		tickets:  NewTicketMetrics(cfg, registry),
	}
}

// Registry returns the registry the collector registers into.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordCheck records one completed check.
//
// Parameters:
//   - verdict: "SAFE", "TOO_SLOW" or "SPEEDING"
//   - duration: wall time spent in the worker, including simulated latency
func (c *Collector) RecordCheck(verdict string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.checks.checked.WithLabelValues(verdict).Inc()
	c.checks.duration.WithLabelValues(verdict).Observe(duration.Seconds())
}

// RecordEvaluationFailure records a check that produced no result.
// Reason is "error" or "panic".
func (c *Collector) RecordEvaluationFailure(reason string) {
	if !c.enabled() {
		return
	}
	c.checks.failures.WithLabelValues(reason).Inc()
}

// RecordFine records an issued ticket and its amount.
func (c *Collector) RecordFine(kind string, amount float64) {
	if !c.enabled() {
		return
	}
	c.tickets.issued.WithLabelValues(kind).Inc()
	c.tickets.amount.WithLabelValues(kind).Add(amount)
}

// RecordTicketWrite records the outcome of persisting a ticket.
// Result is "ok", "error" or "dropped".
func (c *Collector) RecordTicketWrite(result string) {
	if !c.enabled() {
		return
	}
	c.tickets.written.WithLabelValues(result).Inc()
}

// SetInflight sets the number of checks currently running.
func (c *Collector) SetInflight(n int) {
	if !c.enabled() {
		return
	}
	c.pipeline.inflight.Set(float64(n))
}

// SetQueueDepth sets the number of vehicles waiting for a worker.
func (c *Collector) SetQueueDepth(n int) {
	if !c.enabled() {
		return
	}
	c.pipeline.queueDepth.Set(float64(n))
}

// SetWorkerBusy marks a worker slot busy or idle.
func (c *Collector) SetWorkerBusy(worker int, busy bool) {
	if !c.enabled() {
		return
	}
	v := 0.0
	if busy {
		v = 1
	}
	c.pipeline.workerBusy.WithLabelValues(strconv.Itoa(worker)).Set(v)
}

// RecordBatch records a completed batch of the given size.
func (c *Collector) RecordBatch(size int) {
	if !c.enabled() {
		return
	}
	c.pipeline.batches.Inc()
	c.pipeline.batchSize.Observe(float64(size))
}

// RecordLost records vehicles that never produced a result.
// Reason is "rejected", "terminated" or "abandoned".
func (c *Collector) RecordLost(reason string, n int) {
	if !c.enabled() || n == 0 {
		return
	}
	c.pipeline.lost.WithLabelValues(reason).Add(float64(n))
}
