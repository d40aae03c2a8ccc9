package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/traffic"
)

func testRules() *rules.RuleConfig {
	return rules.MustNew(rules.DefaultSettings())
}

func vehicle(i int, speed float64) traffic.Vehicle {
	return traffic.Vehicle{
		ID:           fmt.Sprintf("veh-%03d", i),
		LicensePlate: fmt.Sprintf("B %04d XY", i),
		Speed:        speed,
		Type:         traffic.VehicleCar,
		STNKActive:   true,
		SIMActive:    true,
		Timestamp:    time.Now(),
	}
}

// batchOf returns n vehicles cycling through safe, too-slow and speeding.
func batchOf(start, n int) []traffic.Vehicle {
	speeds := []float64{85, 45, 125}
	out := make([]traffic.Vehicle, n)
	for i := range out {
		out[i] = vehicle(start+i, speeds[i%len(speeds)])
	}
	return out
}

// memSink is a TicketSink and StatsSink that keeps everything in memory.
type memSink struct {
	mu       sync.Mutex
	tickets  []*traffic.Ticket
	final    *traffic.Stats
	closed   bool
	closeErr error
	finalErr error
}

func (s *memSink) Record(ctx context.Context, t *traffic.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sink closed")
	}
	s.tickets = append(s.tickets, t)
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *memSink) Final(ctx context.Context, st traffic.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.final = &st
	return s.finalErr
}

func (s *memSink) Tickets() []*traffic.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*traffic.Ticket(nil), s.tickets...)
}

func newTestPipeline(t *testing.T, opts Options) (*Pipeline, *memSink) {
	t.Helper()
	sink := &memSink{}
	if opts.Rules == nil {
		opts.Rules = testRules()
	}
	if opts.Tickets == nil {
		opts.Tickets = sink
	}
	if opts.Stats == nil {
		opts.Stats = sink
	}
	if opts.EventBuffer == 0 {
		opts.EventBuffer = 4096
	}
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return p, sink
}

// collect reads events until one of type until arrives, returning all seen.
func collect(t *testing.T, sub *Subscription, until EventType) []Event {
	t.Helper()
	var seen []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case e, ok := <-sub.C():
			if !ok {
				t.Fatalf("event channel closed before %s", until)
			}
			seen = append(seen, e)
			if e.Type == until {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s after %d events", until, len(seen))
		}
	}
}

func count(events []Event, typ EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}
