package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/traffic"
)

// DefaultRecentTickets is how many tickets the aggregator keeps in memory.
// The full history is in the TicketSink's store.
const DefaultRecentTickets = 500

// TicketSink receives every issued ticket. Close drains pending writes
// and reports the ones that failed.
type TicketSink interface {
	Record(ctx context.Context, t *traffic.Ticket) error
	Close() error
}

// StatsSink receives the final statistics during shutdown.
type StatsSink interface {
	Final(ctx context.Context, st traffic.Stats) error
}

// Aggregator accumulates results. All state is guarded by one mutex.
type Aggregator struct {
	mu       sync.Mutex
	stats    traffic.Stats
	speedSum float64
	recent   []*traffic.Ticket
	keep     int
	flushed  bool
	flushErr error

	tickets TicketSink
	final   StatsSink
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// NewAggregator creates an aggregator. Any sink and the collector may be nil.
func NewAggregator(tickets TicketSink, final StatsSink, collector *metrics.Collector) *Aggregator {
	a := &Aggregator{
		keep:    DefaultRecentTickets,
		tickets: tickets,
		final:   final,
		metrics: collector,
		logger:  slog.Default().With("component", "pipeline.aggregator"),
		now:     time.Now,
	}
	a.stats.StartedAt = a.now()
	a.stats.UpdatedAt = a.stats.StartedAt
	a.stats.TotalFines = decimal.Zero
	return a
}

// Record adds one check result and forwards its ticket to the sink. It
// blocks while the sink is full, holding back the dispatcher.
func (a *Aggregator) Record(ctx context.Context, res traffic.CheckResult) {
	a.mu.Lock()
	s := &a.stats
	s.TotalProcessed++
	a.speedSum += res.Vehicle.Speed
	if res.Vehicle.Speed > s.MaxSpeed {
		s.MaxSpeed = res.Vehicle.Speed
	}
	if res.IsViolation {
		s.TotalViolations++
		switch res.Kind {
		case traffic.KindTooSlow:
			s.TooSlow++
		case traffic.KindSpeeding:
			s.Speeding++
		}
	}
	if res.Ticket != nil {
		s.TotalFines = s.TotalFines.Add(res.Ticket.TotalFine)
		a.recent = append(a.recent, res.Ticket)
		if len(a.recent) > a.keep {
			a.recent = append(a.recent[:0:0], a.recent[len(a.recent)-a.keep:]...)
		}
	}
	a.touch()
	a.mu.Unlock()

	if res.Ticket == nil {
		return
	}
	a.metrics.RecordFine(string(res.Kind), res.Ticket.TotalFine.InexactFloat64())
	if a.tickets == nil {
		return
	}
	if err := a.tickets.Record(ctx, res.Ticket); err != nil {
		a.logger.Error("failed to hand ticket to sink",
			"ticket_id", res.Ticket.ID,
			"plate", res.Ticket.LicensePlate,
			"error", err,
		)
	}
}

// RecordRejected counts a vehicle refused at submission.
func (a *Aggregator) RecordRejected() {
	a.mu.Lock()
	a.stats.Rejected++
	a.touch()
	a.mu.Unlock()
	a.metrics.RecordLost("rejected", 1)
}

// RecordDropped counts a vehicle whose evaluation failed.
func (a *Aggregator) RecordDropped() {
	a.mu.Lock()
	a.stats.Dropped++
	a.touch()
	a.mu.Unlock()
}

// RecordTerminated counts vehicles cancelled in flight at shutdown.
func (a *Aggregator) RecordTerminated(n int) {
	a.mu.Lock()
	a.stats.Terminated += int64(n)
	a.touch()
	a.mu.Unlock()
	a.metrics.RecordLost("terminated", n)
}

// RecordAbandoned counts vehicles still queued at shutdown.
func (a *Aggregator) RecordAbandoned(n int) {
	a.mu.Lock()
	a.stats.Abandoned += int64(n)
	a.touch()
	a.mu.Unlock()
	a.metrics.RecordLost("abandoned", n)
}

// RecordBatch counts a completed batch.
func (a *Aggregator) RecordBatch(size int) {
	a.mu.Lock()
	a.stats.Batches++
	a.touch()
	a.mu.Unlock()
	a.metrics.RecordBatch(size)
}

// touch refreshes derived fields. Caller holds mu.
func (a *Aggregator) touch() {
	s := &a.stats
	if s.TotalProcessed > 0 {
		s.AvgSpeed = a.speedSum / float64(s.TotalProcessed)
		s.ViolationRate = float64(s.TotalViolations) / float64(s.TotalProcessed) * 100
	}
	s.UpdatedAt = a.now()
}

// Stats returns a snapshot of the running statistics.
func (a *Aggregator) Stats() traffic.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Tickets returns the most recent tickets, oldest first.
func (a *Aggregator) Tickets() []*traffic.Ticket {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*traffic.Ticket, len(a.recent))
	for i, t := range a.recent {
		cp := *t
		out[i] = &cp
	}
	return out
}

// Flush closes the ticket sink and saves the final statistics. Errors are
// collected into a *traffic.FlushError. Later calls return the first result.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.flushed {
		err := a.flushErr
		a.mu.Unlock()
		return err
	}
	a.flushed = true
	a.mu.Unlock()

	var errs []error
	if a.tickets != nil {
		if err := a.tickets.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.final != nil {
		if err := a.final.Final(ctx, a.Stats()); err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	if len(errs) > 0 {
		err = &traffic.FlushError{Errs: errs}
		a.logger.Error("aggregator flush failed", "errors", len(errs), "error", err)
	}

	a.mu.Lock()
	a.flushErr = err
	a.mu.Unlock()
	return err
}
