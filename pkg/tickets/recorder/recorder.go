package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/traffic"
)

// maxReportedErrors bounds the write failures kept for Close.
const maxReportedErrors = 32

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("ticket recorder closed")

// Config contains configuration for the ticket recorder.
type Config struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds both enqueueing a ticket and a single storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		AsyncBuffer:  config.DefaultRecorderAsyncBuffer,
		WriteTimeout: config.DefaultRecorderWriteTimeout,
	}
}

// FromConfig maps the YAML recorder section onto Config.
func FromConfig(cfg *config.RecorderConfig) *Config {
	return &Config{
		AsyncBuffer:  cfg.AsyncBuffer,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Recorder persists tickets without blocking the workers that issue them.
type Recorder struct {
	storage    tickets.Storage
	config     *Config
	metrics    *metrics.Collector
	ticketChan chan *traffic.Ticket
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger

	// closeMu orders Record against Close so nothing is enqueued after the drain.
	closeMu sync.RWMutex
	closed  bool

	errMu   sync.Mutex
	errs    []error
	written atomic.Int64
	failed  atomic.Int64
}

// NewRecorder creates a recorder that writes to storage. The collector may be nil.
func NewRecorder(storage tickets.Storage, cfg *Config, collector *metrics.Collector) *Recorder {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = config.DefaultRecorderAsyncBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultRecorderWriteTimeout
	}

	r := &Recorder{
		storage:    storage,
		config:     cfg,
		metrics:    collector,
		ticketChan: make(chan *traffic.Ticket, cfg.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "tickets.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("ticket recorder initialized",
		"async_buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
	)
	return r
}

// Record enqueues a ticket for writing. It blocks for at most WriteTimeout
// when the buffer is full and fails when ctx is cancelled first.
func (r *Recorder) Record(ctx context.Context, ticket *traffic.Ticket) error {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()

	if r.closed {
		r.drop(ticket, ErrClosed)
		return tickets.NewRecorderError(ticket.ID, ErrClosed)
	}

	select {
	case r.ticketChan <- ticket:
		return nil
	default:
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.ticketChan <- ticket:
		return nil
	case <-timer.C:
		r.logger.Error("ticket channel full, dropping ticket",
			"ticket_id", ticket.ID,
			"plate", ticket.LicensePlate,
			"channel_capacity", r.config.AsyncBuffer,
		)
		r.drop(ticket, context.DeadlineExceeded)
		return tickets.NewRecorderError(ticket.ID, context.DeadlineExceeded)
	case <-ctx.Done():
		r.drop(ticket, ctx.Err())
		return tickets.NewRecorderError(ticket.ID, ctx.Err())
	}
}

// Close drains queued tickets and waits for the writer to finish.
// It returns the write failures observed over the recorder's lifetime.
func (r *Recorder) Close() error {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.closeMu.Unlock()

	r.logger.Info("shutting down ticket recorder", "pending_count", len(r.ticketChan))
	r.wg.Wait()
	r.logger.Info("ticket recorder shut down complete",
		"written", r.written.Load(),
		"failed", r.failed.Load(),
	)

	r.errMu.Lock()
	defer r.errMu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	errs := r.errs
	if n := r.failed.Load(); n > int64(len(errs)) {
		errs = append(errs, fmt.Errorf("%d more ticket writes failed", n-int64(len(errs))))
	}
	return errors.Join(errs...)
}

// Written returns the number of tickets persisted so far.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Failed returns the number of tickets that could not be persisted.
func (r *Recorder) Failed() int64 {
	return r.failed.Load()
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case ticket := <-r.ticketChan:
			r.write(ticket)

		case <-r.done:
			for {
				select {
				case ticket := <-r.ticketChan:
					r.write(ticket)
				default:
					r.logger.Debug("ticket channel drained")
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ticket *traffic.Ticket) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, ticket); err != nil {
		r.logger.Error("failed to store ticket",
			"ticket_id", ticket.ID,
			"plate", ticket.LicensePlate,
			"error", err,
		)
		r.metrics.RecordTicketWrite("error")
		r.fail(tickets.NewRecorderError(ticket.ID, err))
		return
	}

	r.written.Add(1)
	r.metrics.RecordTicketWrite("ok")

	duration := time.Since(start)
	r.logger.Debug("ticket recorded",
		"ticket_id", ticket.ID,
		"plate", ticket.LicensePlate,
		"kind", ticket.Kind,
		"total_fine", ticket.TotalFine.String(),
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow ticket write",
			"ticket_id", ticket.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}

func (r *Recorder) drop(ticket *traffic.Ticket, cause error) {
	r.metrics.RecordTicketWrite("dropped")
	r.fail(tickets.NewRecorderError(ticket.ID, cause))
}

func (r *Recorder) fail(err error) {
	r.failed.Add(1)
	r.errMu.Lock()
	if len(r.errs) < maxReportedErrors {
		r.errs = append(r.errs, err)
	}
	r.errMu.Unlock()
}
