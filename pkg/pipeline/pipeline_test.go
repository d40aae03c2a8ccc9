package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
	"mercator-hq/tollgate/pkg/traffic"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without rules should fail")
	}
	_, err := New(Options{Rules: testRules(), Workers: -1})
	var cfgErr *traffic.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "pipeline.workers" {
		t.Errorf("expected ConfigError for workers, got %v", err)
	}
}

func TestPipeline_PoolSaturation(t *testing.T) {
	var current, peak atomic.Int32
	evaluate := func(v traffic.Vehicle, r *rules.RuleConfig) (traffic.CheckResult, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return rules.Evaluate(v, r)
	}

	p, sink := newTestPipeline(t, Options{Workers: 5, QueueCapacity: 4, Evaluate: evaluate})
	sub := p.Events().Subscribe()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Read the board while checks run: no vehicle may sit in two slots and
	// occupancy must match the slot state.
	var (
		boardMu   sync.Mutex
		boardErrs []string
		polls     int
	)
	pollDone := make(chan struct{})
	pollStop := make(chan struct{})
	go func() {
		defer close(pollDone)
		for {
			select {
			case <-pollStop:
				return
			default:
			}
			occupants := map[string]bool{}
			for _, slot := range p.Board().Snapshot() {
				boardMu.Lock()
				if err := slot.Check(); err != nil {
					boardErrs = append(boardErrs, err.Error())
				}
				if slot.Occupant != nil {
					if occupants[slot.Occupant.ID] {
						boardErrs = append(boardErrs, slot.Occupant.ID+" occupies two slots")
					}
					occupants[slot.Occupant.ID] = true
				}
				boardMu.Unlock()
			}
			boardMu.Lock()
			polls++
			boardMu.Unlock()
			time.Sleep(100 * time.Microsecond)
		}
	}()

	stopPolling := sync.OnceFunc(func() {
		close(pollStop)
		<-pollDone
	})
	t.Cleanup(stopPolling)

	submitted := batchOf(0, 12)
	n, err := p.Submit(context.Background(), submitted)
	if err != nil || n != 12 {
		t.Fatalf("Submit() = %d, %v", n, err)
	}

	events := collect(t, sub, EventBatchCompleted)
	if got := count(events, EventVehicleChecked); got != 12 {
		t.Errorf("VehicleChecked events = %d, want 12", got)
	}
	if got := count(events, EventCheckStarted); got != 12 {
		t.Errorf("CheckStarted events = %d, want 12", got)
	}
	batch := events[len(events)-1].Batch
	if batch == nil || batch.Seq != 1 || len(batch.Vehicles) != 12 || len(batch.Violations) != 8 {
		t.Fatalf("unexpected batch summary: %+v", batch)
	}
	for i, v := range batch.Vehicles {
		if v.ID != submitted[i].ID {
			t.Errorf("batch vehicle %d = %s, want %s", i, v.ID, submitted[i].ID)
		}
	}
	fines := decimal.Zero
	for _, tk := range batch.Violations {
		if tk.ID == "" || !tk.Kind.IsViolation() || !tk.TotalFine.IsPositive() {
			t.Errorf("unexpected batch violation: %+v", tk)
		}
		fines = fines.Add(tk.TotalFine)
	}
	if !fines.Equal(batch.Fines) {
		t.Errorf("batch fines = %s, violations sum to %s", batch.Fines, fines)
	}
	if peak.Load() > 5 {
		t.Errorf("peak concurrency = %d, exceeds 5 workers", peak.Load())
	}

	// Every vehicle checked exactly once, by a valid worker.
	seen := map[string]bool{}
	for _, e := range events {
		if e.Type != EventVehicleChecked {
			continue
		}
		if seen[e.Result.Vehicle.ID] {
			t.Errorf("vehicle %s checked twice", e.Result.Vehicle.ID)
		}
		seen[e.Result.Vehicle.ID] = true
		if e.Result.Worker < 0 || e.Result.Worker >= 5 {
			t.Errorf("invalid worker %d", e.Result.Worker)
		}
		if (e.Result.Ticket != nil) != e.Result.IsViolation {
			t.Errorf("ticket presence does not match violation for %s", e.Result.Vehicle.ID)
		}
	}

	// The next boundary carries only what came after the first.
	if n, err := p.Submit(context.Background(), batchOf(12, 3)); err != nil || n != 3 {
		t.Fatalf("Submit() = %d, %v", n, err)
	}
	events = collect(t, sub, EventBatchCompleted)
	batch = events[len(events)-1].Batch
	if batch.Seq != 2 || len(batch.Vehicles) != 3 || len(batch.Violations) != 2 {
		t.Errorf("second batch: seq=%d vehicles=%d violations=%d, want 2/3/2",
			batch.Seq, len(batch.Vehicles), len(batch.Violations))
	} else if batch.Vehicles[0].ID != "veh-012" {
		t.Errorf("second batch starts at %s, want veh-012", batch.Vehicles[0].ID)
	}

	stopPolling()
	boardMu.Lock()
	if polls == 0 {
		t.Error("board was never read")
	}
	for _, msg := range boardErrs {
		t.Errorf("inconsistent board: %s", msg)
	}
	boardMu.Unlock()

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	st := p.Stats()
	if st.TotalProcessed != 15 || st.TotalViolations != 10 || st.Batches != 2 {
		t.Errorf("unexpected stats: %+v", st)
	}
	tickets := sink.Tickets()
	if len(tickets) != 10 {
		t.Fatalf("sink received %d tickets, want 10", len(tickets))
	}
	for _, tk := range tickets {
		if tk.ID == "" || tk.IssuedAt.IsZero() || tk.Status != traffic.TicketPending {
			t.Errorf("ticket not stamped: %+v", tk)
		}
	}
	for _, s := range p.Board().Snapshot() {
		if s.State != traffic.SlotIdle {
			t.Errorf("worker %d left in %s", s.WorkerID, s.State)
		}
	}
}

func TestPipeline_PanicReleasesSlot(t *testing.T) {
	evaluate := func(v traffic.Vehicle, r *rules.RuleConfig) (traffic.CheckResult, error) {
		if v.ID == "veh-001" {
			panic("sensor glitch")
		}
		if v.ID == "veh-002" {
			return traffic.CheckResult{}, io.ErrUnexpectedEOF
		}
		return rules.Evaluate(v, r)
	}
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)

	p, _ := newTestPipeline(t, Options{Workers: 1, Evaluate: evaluate, Metrics: collector})
	sub := p.Events().Subscribe()
	p.Start(context.Background())
	p.Submit(context.Background(), batchOf(0, 4))

	events := collect(t, sub, EventBatchCompleted)
	if got := count(events, EventEvaluationFailed); got != 2 {
		t.Errorf("EvaluationFailed events = %d, want 2", got)
	}
	for _, e := range events {
		if e.Type == EventEvaluationFailed && e.Vehicle.ID == "veh-001" && !strings.Contains(e.Error, "sensor glitch") {
			t.Errorf("panic message lost: %q", e.Error)
		}
	}

	st := p.Stats()
	if st.TotalProcessed != 2 || st.Dropped != 2 {
		t.Errorf("Processed=%d Dropped=%d, want 2/2", st.TotalProcessed, st.Dropped)
	}
	// The single worker kept going after the panic.
	if s, _ := p.Board().Slot(0); s.State != traffic.SlotIdle || s.Occupant != nil {
		t.Errorf("slot not released: %+v", s)
	}

	expected := `
# HELP tollgate_pipeline_evaluation_failures_total Total number of checks that failed without a result
# TYPE tollgate_pipeline_evaluation_failures_total counter
tollgate_pipeline_evaluation_failures_total{reason="error"} 1
tollgate_pipeline_evaluation_failures_total{reason="panic"} 1
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"tollgate_pipeline_evaluation_failures_total"); err != nil {
		t.Error(err)
	}
	p.Stop(context.Background())
}

func TestPipeline_StopTimeoutTerminates(t *testing.T) {
	p, sink := newTestPipeline(t, Options{
		Workers:         2,
		CheckLatency:    time.Hour,
		ShutdownTimeout: 50 * time.Millisecond,
	})
	sub := p.Events().Subscribe()
	p.Start(context.Background())

	if n, err := p.Submit(context.Background(), batchOf(0, 5)); err != nil || n != 5 {
		t.Fatalf("Submit() = %d, %v", n, err)
	}
	// Wait until both workers are busy.
	started := 0
	for started < 2 {
		select {
		case e := <-sub.C():
			if e.Type == EventCheckStarted {
				started++
			}
		case <-time.After(5 * time.Second):
			t.Fatal("workers never started")
		}
	}

	begin := time.Now()
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 5*time.Second {
		t.Errorf("Stop() took %v", elapsed)
	}

	st := p.Stats()
	if st.Terminated != 2 || st.Abandoned != 3 || st.TotalProcessed != 0 {
		t.Errorf("Terminated=%d Abandoned=%d Processed=%d, want 2/3/0", st.Terminated, st.Abandoned, st.TotalProcessed)
	}
	if got := st.TotalProcessed + st.Dropped + st.Terminated + st.Abandoned; got != 5 {
		t.Errorf("conservation: accounted for %d of 5 vehicles", got)
	}
	for _, s := range p.Board().Snapshot() {
		if s.State != traffic.SlotIdle {
			t.Errorf("worker %d left in %s", s.WorkerID, s.State)
		}
	}
	if sink.final == nil || sink.final.Terminated != 2 {
		t.Errorf("final stats not flushed: %+v", sink.final)
	}
}

func TestPipeline_StopContextCancelled(t *testing.T) {
	p, _ := newTestPipeline(t, Options{Workers: 1, CheckLatency: time.Hour, ShutdownTimeout: time.Hour})
	p.Start(context.Background())
	p.Submit(context.Background(), batchOf(0, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	st := p.Stats()
	if st.Terminated+st.Abandoned != 1 {
		t.Errorf("expected the vehicle to be terminated or abandoned: %+v", st)
	}
}

func TestPipeline_GracefulDrain(t *testing.T) {
	p, sink := newTestPipeline(t, Options{Workers: 3, CheckLatency: 5 * time.Millisecond, CheckJitter: 5 * time.Millisecond})
	p.Start(context.Background())
	p.Submit(context.Background(), batchOf(0, 7))

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	st := p.Stats()
	if st.TotalProcessed != 7 || st.Terminated != 0 || st.Abandoned != 0 {
		t.Errorf("unexpected stats after drain: %+v", st)
	}
	if !sink.closed {
		t.Error("ticket sink not closed by Stop")
	}
	if p.Running() {
		t.Error("Running() = true after Stop")
	}
}

func TestPipeline_StopIdempotentAndSubmitAfterStop(t *testing.T) {
	p, _ := newTestPipeline(t, Options{})
	p.Start(context.Background())

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() failed: %v", err)
	}
	if _, err := p.Submit(context.Background(), batchOf(0, 1)); !errors.Is(err, traffic.ErrStopped) {
		t.Errorf("Submit after Stop: expected ErrStopped, got %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, traffic.ErrStopped) {
		t.Errorf("Start after Stop: expected ErrStopped, got %v", err)
	}
}

func TestPipeline_StopReturnsFlushError(t *testing.T) {
	sink := &memSink{closeErr: io.ErrShortWrite}
	p, _ := newTestPipeline(t, Options{Tickets: sink, Stats: sink})
	p.Start(context.Background())

	err := p.Stop(context.Background())
	var flushErr *traffic.FlushError
	if !errors.As(err, &flushErr) || !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected FlushError wrapping ErrShortWrite, got %v", err)
	}
}

func TestPipeline_MultipleBatches(t *testing.T) {
	p, _ := newTestPipeline(t, Options{Workers: 2})
	sub := p.Events().Subscribe()
	p.Start(context.Background())
	defer p.Stop(context.Background())

	for b := 0; b < 3; b++ {
		p.Submit(context.Background(), batchOf(b*10, 4))
		events := collect(t, sub, EventBatchCompleted)
		if got := events[len(events)-1].Batch.Seq; got != int64(b+1) {
			t.Errorf("batch seq = %d, want %d", got, b+1)
		}
	}
	if st := p.Stats(); st.Batches != 3 || st.TotalProcessed != 12 {
		t.Errorf("Batches=%d Processed=%d, want 3/12", st.Batches, st.TotalProcessed)
	}
}

func TestPipeline_TracesEveryCheck(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	p, _ := newTestPipeline(t, Options{Workers: 2, Tracer: tracing.NewWithProvider(provider)})
	sub := p.Events().Subscribe()
	p.Start(context.Background())
	p.Submit(context.Background(), batchOf(0, 3))
	collect(t, sub, EventBatchCompleted)
	p.Stop(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("recorded %d spans, want 3", len(spans))
	}
	for _, s := range spans {
		if s.Name != tracing.SpanVehicleCheck {
			t.Errorf("span name = %q", s.Name)
		}
	}
}

func TestCheckLatency_DeterministicPerPlate(t *testing.T) {
	latency := checkLatency(100*time.Millisecond, 100*time.Millisecond)
	a := latency("B 1234 XY")
	if a != latency("B 1234 XY") {
		t.Error("latency must be deterministic for a plate")
	}
	if a < 100*time.Millisecond || a >= 200*time.Millisecond {
		t.Errorf("latency %v outside [100ms, 200ms)", a)
	}
	if got := checkLatency(10*time.Millisecond, 0)("x"); got != 10*time.Millisecond {
		t.Errorf("latency without jitter = %v", got)
	}
}

func TestPipeline_RejectsInvalidVehicle(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	p, sink := newTestPipeline(t, Options{Workers: 2, Metrics: collector})
	sub := p.Events().Subscribe()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	batch := batchOf(0, 4)
	batch[2].Speed = -1
	n, err := p.Submit(context.Background(), batch)
	if err != nil || n != 3 {
		t.Fatalf("Submit() = %d, %v; want 3, nil", n, err)
	}

	events := collect(t, sub, EventBatchCompleted)
	summary := events[len(events)-1].Batch
	if len(summary.Vehicles) != 3 {
		t.Errorf("batch has %d vehicles, want 3", len(summary.Vehicles))
	}
	for _, v := range summary.Vehicles {
		if v.ID == batch[2].ID {
			t.Errorf("rejected vehicle %s was checked", v.ID)
		}
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	st := p.Stats()
	if st.Rejected != 1 || st.TotalProcessed != 3 {
		t.Errorf("Rejected=%d Processed=%d, want 1/3", st.Rejected, st.TotalProcessed)
	}
	if sink.final == nil || sink.final.Rejected != 1 {
		t.Errorf("final statistics missing the rejection: %+v", sink.final)
	}
}

// gatedSink holds every Record until gate is closed.
type gatedSink struct {
	*memSink
	gate    chan struct{}
	waiting atomic.Int32
}

func (s *gatedSink) Record(ctx context.Context, tk *traffic.Ticket) error {
	s.waiting.Add(1)
	<-s.gate
	return s.memSink.Record(ctx, tk)
}

func TestPipeline_SlowTicketSinkLosesNothing(t *testing.T) {
	sink := &gatedSink{memSink: &memSink{}, gate: make(chan struct{})}
	p, _ := newTestPipeline(t, Options{Workers: 2, Tickets: sink})
	sub := p.Events().Subscribe()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	batch := make([]traffic.Vehicle, 6)
	for i := range batch {
		batch[i] = vehicle(i, 130)
	}
	if n, err := p.Submit(context.Background(), batch); err != nil || n != 6 {
		t.Fatalf("Submit() = %d, %v", n, err)
	}

	// The dispatcher waits on the sink, so the batch cannot finish yet.
	deadline := time.Now().Add(5 * time.Second)
	for sink.waiting.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := p.Stats().TotalProcessed; got > 1 {
		t.Errorf("processed %d vehicles while the sink was blocked", got)
	}

	close(sink.gate)
	collect(t, sub, EventBatchCompleted)
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if got := len(sink.Tickets()); got != 6 {
		t.Errorf("sink received %d tickets, want 6", got)
	}
}
