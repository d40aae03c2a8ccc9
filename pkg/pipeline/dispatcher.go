package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
	"mercator-hq/tollgate/pkg/traffic"
)

// EvaluateFunc evaluates one vehicle against the rules.
type EvaluateFunc func(v traffic.Vehicle, r *rules.RuleConfig) (traffic.CheckResult, error)

// task is one in-flight check.
type task struct {
	vehicle traffic.Vehicle
	cancel  context.CancelFunc
}

type completion struct {
	worker   int
	result   traffic.CheckResult
	err      error
	panicked bool
	started  time.Time
}

// dispatcher owns the worker slots. All of its fields except completions
// are touched only by the run goroutine.
type dispatcher struct {
	workers  int
	rules    *rules.RuleConfig
	evaluate EvaluateFunc
	latency  func(plate string) time.Duration
	queue    *CheckQueue
	board    *StatusBoard
	agg      *Aggregator
	bus      *EventBus
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time

	slots       []*task
	next        int
	inflight    int
	completions chan completion
	terminating bool
	terminated  int

	batchSeq      int64
	batchVehicles []traffic.Summary
	batchTickets  []traffic.Ticket
	batchFines    decimal.Decimal
}

func newDispatcher(p *Pipeline) *dispatcher {
	evaluate := p.opts.Evaluate
	if evaluate == nil {
		evaluate = rules.Evaluate
	}
	return &dispatcher{
		workers:     p.opts.Workers,
		rules:       p.opts.Rules,
		evaluate:    evaluate,
		latency:     checkLatency(p.opts.CheckLatency, p.opts.CheckJitter),
		queue:       p.queue,
		board:       p.board,
		agg:         p.agg,
		bus:         p.bus,
		metrics:     p.opts.Metrics,
		tracer:      p.opts.Tracer,
		logger:      p.logger.With("component", "pipeline.dispatcher"),
		newID:       func() string { return uuid.New().String() },
		now:         time.Now,
		slots:       make([]*task, p.opts.Workers),
		completions: make(chan completion, p.opts.Workers),
		batchFines:  decimal.Zero,
	}
}

// checkLatency returns the simulated check time for a plate: base plus a
// per-plate offset below jitter, at millisecond resolution.
func checkLatency(base, jitter time.Duration) func(string) time.Duration {
	steps := int64(jitter / time.Millisecond)
	return func(plate string) time.Duration {
		if steps <= 0 {
			return base
		}
		h := fnv.New32a()
		h.Write([]byte(plate))
		return base + time.Duration(int64(h.Sum32())%steps)*time.Millisecond
	}
}

// run multiplexes the queue, completions and the stop signal until the
// pipeline has drained after stop, or ctx is cancelled.
func (d *dispatcher) run(ctx context.Context, stop <-chan struct{}) {
	stopping := false
	for {
		if stopping && d.queue.Pending() == 0 && d.inflight == 0 {
			return
		}

		// Stop receiving while every slot is busy.
		var in <-chan traffic.Vehicle
		if d.inflight < d.workers {
			in = d.queue.C()
		}

		select {
		case v := <-in:
			d.queue.Dequeued()
			d.batchVehicles = append(d.batchVehicles, v.Summarize())
			d.dispatch(ctx, v)
		case c := <-d.completions:
			d.complete(ctx, c)
		case <-stop:
			stopping = true
			stop = nil
		case <-ctx.Done():
			d.terminate(ctx)
			return
		}
		d.metrics.SetQueueDepth(d.queue.Pending())
	}
}

// freeSlot returns the next unoccupied slot in round-robin order.
func (d *dispatcher) freeSlot() int {
	for i := 0; i < d.workers; i++ {
		w := (d.next + i) % d.workers
		if d.slots[w] == nil {
			d.next = (w + 1) % d.workers
			return w
		}
	}
	return -1
}

func (d *dispatcher) dispatch(ctx context.Context, v traffic.Vehicle) {
	worker := d.freeSlot()
	summary := v.Summarize()

	slot, err := d.board.Occupy(worker, v)
	if err != nil {
		d.logger.Error("cannot occupy worker slot",
			"vehicle_id", v.ID,
			"plate", v.LicensePlate,
			"worker", worker,
			"error", err,
		)
		d.fail(worker, summary, traffic.NewEvaluationError(v.ID, worker, err), "error")
		d.checkBatch()
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	d.slots[worker] = &task{vehicle: v, cancel: cancel}
	d.inflight++
	d.metrics.SetInflight(d.inflight)
	d.metrics.SetWorkerBusy(worker, true)

	d.bus.Publish(Event{Type: EventCheckStarted, Worker: worker, Vehicle: &summary})
	d.publishSlot(slot)

	d.logger.Debug("check started", "vehicle_id", v.ID, "plate", v.LicensePlate, "worker", worker)
	go d.check(taskCtx, worker, v, d.now())
}

// check runs on its own goroutine and always sends exactly one completion.
func (d *dispatcher) check(ctx context.Context, worker int, v traffic.Vehicle, started time.Time) {
	c := completion{worker: worker, started: started}

	ctx, span := d.tracer.Start(ctx, tracing.SpanVehicleCheck,
		trace.WithAttributes(tracing.VehicleAttributes(&v, worker)...))
	defer func() {
		if r := recover(); r != nil {
			c.err = traffic.NewEvaluationError(v.ID, worker, fmt.Errorf("panic: %v", r))
			c.panicked = true
		}
		tracing.RecordResult(span, &c.result, c.err)
		span.End()
		d.completions <- c
	}()

	c.result, c.err = d.evaluateOne(ctx, worker, v)
}

func (d *dispatcher) evaluateOne(ctx context.Context, worker int, v traffic.Vehicle) (traffic.CheckResult, error) {
	if wait := d.latency(v.LicensePlate); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return traffic.CheckResult{}, ctx.Err()
		}
	}

	res, err := d.evaluate(v, d.rules)
	if err != nil {
		return traffic.CheckResult{}, traffic.NewEvaluationError(v.ID, worker, err)
	}

	now := d.now()
	res.Worker = worker
	res.CompletedAt = now
	if res.Ticket != nil {
		res.Ticket.ID = d.newID()
		res.Ticket.IssuedAt = now
	}
	return res, nil
}

func (d *dispatcher) complete(ctx context.Context, c completion) {
	t := d.slots[c.worker]
	d.slots[c.worker] = nil
	d.inflight--
	t.cancel()
	d.metrics.SetInflight(d.inflight)
	d.metrics.SetWorkerBusy(c.worker, false)

	summary := t.vehicle.Summarize()
	switch {
	case c.err == nil:
		res := c.result
		d.agg.Record(context.WithoutCancel(ctx), res)
		d.metrics.RecordCheck(string(res.Kind), d.now().Sub(c.started))

		if slot, err := d.board.Verdict(c.worker, res.Kind); err != nil {
			d.logger.Error("invalid slot transition", "worker", c.worker, "error", err)
		} else {
			d.publishSlot(slot)
		}
		d.bus.Publish(Event{Type: EventVehicleChecked, Worker: c.worker, Vehicle: &summary, Result: &res})

		if res.Ticket != nil {
			d.batchTickets = append(d.batchTickets, *res.Ticket)
			d.batchFines = d.batchFines.Add(res.Ticket.TotalFine)
			d.logger.Info("ticket issued",
				"ticket_id", res.Ticket.ID,
				"vehicle_id", t.vehicle.ID,
				"plate", t.vehicle.LicensePlate,
				"kind", res.Kind,
				"band", res.Ticket.Band,
				"speed", t.vehicle.Speed,
				"total_fine", res.Ticket.TotalFine.String(),
				"worker", c.worker,
			)
		}

	case d.terminating && errors.Is(c.err, context.Canceled):
		d.terminated++
		d.agg.RecordTerminated(1)
		d.logger.Warn("check terminated",
			"vehicle_id", t.vehicle.ID,
			"plate", t.vehicle.LicensePlate,
			"worker", c.worker,
		)

	default:
		reason := "error"
		if c.panicked {
			reason = "panic"
		}
		d.logger.Error("vehicle evaluation failed",
			"vehicle_id", t.vehicle.ID,
			"plate", t.vehicle.LicensePlate,
			"worker", c.worker,
			"reason", reason,
			"error", c.err,
		)
		d.fail(c.worker, summary, c.err, reason)
	}

	if slot, err := d.board.Release(c.worker); err != nil {
		d.logger.Error("invalid slot transition", "worker", c.worker, "error", err)
	} else {
		d.publishSlot(slot)
	}
	d.checkBatch()
}

func (d *dispatcher) fail(worker int, v traffic.Summary, err error, reason string) {
	d.metrics.RecordEvaluationFailure(reason)
	d.agg.RecordDropped()
	d.bus.Publish(Event{Type: EventEvaluationFailed, Worker: worker, Vehicle: &v, Error: err.Error()})
}

// checkBatch emits BatchCompleted once the pipeline is quiescent after at
// least one vehicle was dequeued.
func (d *dispatcher) checkBatch() {
	if d.terminating || len(d.batchVehicles) == 0 || d.inflight > 0 || d.queue.Pending() > 0 {
		return
	}

	d.batchSeq++
	summary := BatchSummary{
		Seq:        d.batchSeq,
		Vehicles:   d.batchVehicles,
		Violations: d.batchTickets,
		Fines:      d.batchFines,
	}
	if summary.Violations == nil {
		summary.Violations = []traffic.Ticket{}
	}
	d.agg.RecordBatch(len(summary.Vehicles))
	d.bus.Publish(Event{Type: EventBatchCompleted, Batch: &summary})
	d.logger.Info("batch completed",
		"batch", summary.Seq,
		"vehicles", len(summary.Vehicles),
		"tickets", len(summary.Violations),
		"fines", summary.Fines.String(),
	)

	// The published summary owns the old slices.
	d.batchVehicles = nil
	d.batchTickets = nil
	d.batchFines = decimal.Zero
}

// terminate cancels in-flight checks, waits for their completions and
// discards the vehicles still queued.
func (d *dispatcher) terminate(ctx context.Context) {
	d.terminating = true
	inflight := d.inflight

	for _, t := range d.slots {
		if t != nil {
			t.cancel()
		}
	}
	for d.inflight > 0 {
		d.complete(ctx, <-d.completions)
	}

	abandoned := d.queue.drain()
	if len(abandoned) > 0 {
		d.agg.RecordAbandoned(len(abandoned))
	}
	d.metrics.SetQueueDepth(d.queue.Pending())

	d.logger.Warn("forced termination",
		"in_flight", inflight,
		"terminated", d.terminated,
		"abandoned", len(abandoned),
	)
}

func (d *dispatcher) publishSlot(slot traffic.WorkerSlot) {
	slot = copySlot(slot)
	d.bus.Publish(Event{Type: EventSlotChanged, Worker: slot.WorkerID, Slot: &slot})
}
