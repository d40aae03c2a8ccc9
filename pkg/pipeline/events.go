package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/tollgate/pkg/traffic"
)

// EventType identifies a pipeline event.
type EventType string

const (
	EventCheckStarted     EventType = "check_started"
	EventSlotChanged      EventType = "slot_changed"
	EventVehicleChecked   EventType = "vehicle_checked"
	EventEvaluationFailed EventType = "evaluation_failed"
	EventBatchCompleted   EventType = "batch_completed"
	EventStopped          EventType = "pipeline_stopped"
)

// BatchSummary lists the vehicles dequeued and the tickets issued since the
// previous batch boundary.
type BatchSummary struct {
	Seq        int64             `json:"seq"`
	Vehicles   []traffic.Summary `json:"vehicles"`
	Violations []traffic.Ticket  `json:"violations"`
	Fines      decimal.Decimal   `json:"fines"`
}

// Event is one pipeline notification. Only the fields relevant to Type
// are set.
type Event struct {
	Type    EventType            `json:"type"`
	At      time.Time            `json:"at"`
	Worker  int                  `json:"worker"`
	Vehicle *traffic.Summary     `json:"vehicle,omitempty"`
	Slot    *traffic.WorkerSlot  `json:"slot,omitempty"`
	Result  *traffic.CheckResult `json:"result,omitempty"`
	Batch   *BatchSummary        `json:"batch,omitempty"`
	Stats   *traffic.Stats       `json:"stats,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// Subscription receives events from an EventBus.
type Subscription struct {
	id int
	c  chan Event
}

// C returns the event channel. It is closed by Unsubscribe or when the
// bus closes.
func (s *Subscription) C() <-chan Event {
	return s.c
}

// EventBus fans events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[int]*Subscription
	nextID  int
	buffer  int
	closed  bool
	dropped atomic.Int64
}

// NewEventBus creates a bus whose subscriptions buffer up to buffer events.
func NewEventBus(buffer int) *EventBus {
	if buffer < 1 {
		buffer = 1
	}
	return &EventBus{
		subs:   make(map[int]*Subscription),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber. On a closed bus the returned
// subscription's channel is already closed.
func (b *EventBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{id: b.nextID, c: make(chan Event, b.buffer)}
	b.nextID++
	if b.closed {
		close(sub.c)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(sub.c)
	}
}

// Publish delivers e to every subscriber with room in its buffer.
func (b *EventBus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.c <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of deliveries skipped because a subscriber
// was full.
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscription. Later publishes are discarded.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.c)
	}
}
