package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/tollgate/pkg/config"
)

// PipelineMetrics tracks queue and worker pool occupancy.
type PipelineMetrics struct {
	inflight   prometheus.Gauge
	queueDepth prometheus.Gauge
	workerBusy *prometheus.GaugeVec
	batches    prometheus.Counter
	batchSize  prometheus.Histogram
	lost       *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers pipeline metrics with the provided registry.
func NewPipelineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PipelineMetrics {
	pm := &PipelineMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "inflight_checks",
			Help:      "Number of checks currently running",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "queue_depth",
			Help:      "Number of vehicles waiting for a worker",
		}),
		workerBusy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "worker_busy",
			Help:      "1 when the worker slot holds a vehicle, 0 when idle",
		}, []string{"worker"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "batches_completed_total",
			Help:      "Total number of batches fully processed",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "batch_size",
			Help:      "Number of vehicles in a completed batch",
			Buckets:   prometheus.LinearBuckets(5, 5, 8),
		}),
		lost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "vehicles_lost_total",
			Help:      "Vehicles that never produced a result at shutdown",
		}, []string{"reason"}),
	}

	registry.MustRegister(pm.inflight, pm.queueDepth, pm.workerBusy, pm.batches, pm.batchSize, pm.lost)
	return pm
}
