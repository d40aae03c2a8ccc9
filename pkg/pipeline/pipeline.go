package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
	"mercator-hq/tollgate/pkg/traffic"
)

// Options configures a Pipeline. Rules is required.
type Options struct {
	// Workers is the number of concurrent checks.
	// Default: 5
	Workers int

	// QueueCapacity is the number of vehicles buffered ahead of the workers.
	// Default: 64
	QueueCapacity int

	// ShutdownTimeout bounds the drain in Stop before in-flight checks are cancelled.
	// Default: 10 seconds
	ShutdownTimeout time.Duration

	// CheckLatency and CheckJitter set the simulated time per check:
	// CheckLatency plus a per-plate offset below CheckJitter.
	CheckLatency time.Duration
	CheckJitter  time.Duration

	// EventBuffer is the per-subscriber event buffer.
	// Default: 256
	EventBuffer int

	Rules *rules.RuleConfig

	// Tickets receives issued tickets; Stats receives the final statistics.
	// Both may be nil.
	Tickets TicketSink
	Stats   StatsSink

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Logger  *slog.Logger

	// Evaluate replaces rules.Evaluate. Used by tests.
	Evaluate EvaluateFunc
}

// OptionsFromConfig maps the YAML pipeline section onto Options.
func OptionsFromConfig(cfg *config.PipelineConfig, r *rules.RuleConfig) Options {
	return Options{
		Workers:         cfg.Workers,
		QueueCapacity:   cfg.QueueCapacity,
		ShutdownTimeout: cfg.ShutdownTimeout,
		CheckLatency:    cfg.CheckLatency,
		CheckJitter:     cfg.CheckJitter,
		EventBuffer:     cfg.EventBuffer,
		Rules:           r,
	}
}

func (o *Options) applyDefaults() {
	if o.Workers == 0 {
		o.Workers = config.DefaultPipelineWorkers
	}
	if o.QueueCapacity == 0 {
		o.QueueCapacity = config.DefaultPipelineQueueCapacity
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = config.DefaultPipelineShutdownTimeout
	}
	if o.EventBuffer == 0 {
		o.EventBuffer = config.DefaultPipelineEventBuffer
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Pipeline wires the queue, dispatcher, board, aggregator and event bus.
type Pipeline struct {
	opts   Options
	queue  *CheckQueue
	board  *StatusBoard
	agg    *Aggregator
	bus    *EventBus
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	force   context.CancelFunc
	stopCh  chan struct{}
	done    chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// New validates opts and builds a stopped pipeline.
func New(opts Options) (*Pipeline, error) {
	opts.applyDefaults()
	if opts.Rules == nil {
		return nil, traffic.NewConfigError("rules", "rule configuration is required")
	}
	if opts.Workers < 1 {
		return nil, traffic.NewConfigError("pipeline.workers", "must be at least 1, got %d", opts.Workers)
	}
	if opts.QueueCapacity < 1 {
		return nil, traffic.NewConfigError("pipeline.queue_capacity", "must be at least 1, got %d", opts.QueueCapacity)
	}
	if opts.ShutdownTimeout < 0 || opts.CheckLatency < 0 || opts.CheckJitter < 0 {
		return nil, traffic.NewConfigError("pipeline", "durations must not be negative")
	}

	p := &Pipeline{
		opts:   opts,
		queue:  NewCheckQueue(opts.QueueCapacity),
		board:  NewStatusBoard(opts.Workers),
		agg:    NewAggregator(opts.Tickets, opts.Stats, opts.Metrics),
		bus:    NewEventBus(opts.EventBuffer),
		logger: opts.Logger.With("component", "pipeline"),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.queue.OnReject(p.reject)
	return p, nil
}

// Start launches the dispatcher. Cancelling ctx does not stop the
// pipeline; call Stop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return traffic.ErrStopped
	}
	if p.started {
		return errors.New("pipeline already started")
	}

	forceCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.force = cancel
	p.started = true

	d := newDispatcher(p)
	go func() {
		defer close(p.done)
		d.run(forceCtx, p.stopCh)
	}()

	p.logger.Info("pipeline started",
		"workers", p.opts.Workers,
		"queue_capacity", p.opts.QueueCapacity,
		"check_latency", p.opts.CheckLatency,
		"check_jitter", p.opts.CheckJitter,
	)
	return nil
}

// Submit enqueues a batch, blocking while the queue is full. Vehicles that
// fail validation are skipped and counted in Stats.Rejected. It returns how
// many vehicles were enqueued.
func (p *Pipeline) Submit(ctx context.Context, batch []traffic.Vehicle) (int, error) {
	return p.queue.Submit(ctx, batch)
}

// reject logs and counts a vehicle that failed validation. The rest of its
// batch is still enqueued.
func (p *Pipeline) reject(v traffic.Vehicle, err error) {
	p.agg.RecordRejected()
	p.logger.Warn("vehicle rejected",
		"vehicle_id", v.ID,
		"plate", v.LicensePlate,
		"error", err,
	)
}

// Stop closes the queue, waits up to the shutdown timeout (or ctx) for
// queued and in-flight vehicles, cancels what remains and flushes the
// aggregator. A failed flush is returned as *traffic.FlushError. Later
// calls return the first result.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stopErr = p.shutdown(ctx)
	})
	return p.stopErr
}

func (p *Pipeline) shutdown(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("stopping pipeline", "pending", p.queue.Pending())
	p.queue.Close()

	if started {
		close(p.stopCh)

		timer := time.NewTimer(p.opts.ShutdownTimeout)
		select {
		case <-p.done:
		case <-timer.C:
			p.logger.Warn("shutdown timeout reached, terminating remaining checks",
				"timeout", p.opts.ShutdownTimeout)
			p.force()
			<-p.done
		case <-ctx.Done():
			p.logger.Warn("shutdown cancelled, terminating remaining checks", "error", ctx.Err())
			p.force()
			<-p.done
		}
		timer.Stop()
		p.force()
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.ShutdownTimeout)
	defer cancel()
	err := p.agg.Flush(flushCtx)

	st := p.agg.Stats()
	p.bus.Publish(Event{Type: EventStopped, Stats: &st})
	p.bus.Close()

	p.logger.Info("pipeline stopped",
		"processed", st.TotalProcessed,
		"violations", st.TotalViolations,
		"rejected", st.Rejected,
		"dropped", st.Dropped,
		"terminated", st.Terminated,
		"abandoned", st.Abandoned,
		"total_fines", st.TotalFines.String(),
	)
	return err
}

// Running reports whether the pipeline has started and not been stopped.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}

// Stats returns a snapshot of the running statistics.
func (p *Pipeline) Stats() traffic.Stats {
	return p.agg.Stats()
}

// Tickets returns the most recently issued tickets, oldest first.
func (p *Pipeline) Tickets() []*traffic.Ticket {
	return p.agg.Tickets()
}

// Board returns the worker status board.
func (p *Pipeline) Board() *StatusBoard {
	return p.board
}

// Events returns the pipeline event bus.
func (p *Pipeline) Events() *EventBus {
	return p.bus
}

// QueueDepth returns the number of vehicles waiting for a worker.
func (p *Pipeline) QueueDepth() int {
	return p.queue.Pending()
}

// Workers returns the worker pool size.
func (p *Pipeline) Workers() int {
	return p.opts.Workers
}
