package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/tollgate/pkg/config"
)

// CheckMetrics tracks per-vehicle evaluation.
type CheckMetrics struct {
	checked  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewCheckMetrics creates and registers check metrics with the provided registry.
func NewCheckMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CheckMetrics {
	cm := &CheckMetrics{
		checked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "vehicles_checked_total",
				Help:      "Total number of vehicles checked by verdict",
			},
			[]string{"verdict"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "check_duration_seconds",
				Help:      "Duration of a single vehicle check in seconds",
				Buckets:   cfg.CheckDurationBuckets,
			},
			[]string{"verdict"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_failures_total",
				Help:      "Total number of checks that failed without a result",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(cm.checked, cm.duration, cm.failures)
	return cm
}
