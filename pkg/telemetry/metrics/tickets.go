package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/tollgate/pkg/config"
)

// TicketMetrics tracks issued fines and ticket persistence.
type TicketMetrics struct {
	issued  *prometheus.CounterVec
	amount  *prometheus.CounterVec
	written *prometheus.CounterVec
}

// NewTicketMetrics creates and registers ticket metrics with the provided registry.
func NewTicketMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *TicketMetrics {
	tm := &TicketMetrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fines_issued_total",
			Help:      "Total number of tickets issued by violation kind",
		}, []string{"kind"}),
		amount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fine_amount_total",
			Help:      "Sum of issued fine amounts by violation kind",
		}, []string{"kind"}),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tickets_written_total",
			Help:      "Ticket storage writes by result",
		}, []string{"result"}),
	}

	registry.MustRegister(tm.issued, tm.amount, tm.written)
	return tm
}
