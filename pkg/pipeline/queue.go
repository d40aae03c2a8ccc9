package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"mercator-hq/tollgate/pkg/traffic"
)

// CheckQueue is a bounded FIFO of vehicles waiting for a worker.
//
// Submit reserves room for a whole batch in the pending count before
// pushing any vehicle, so Pending never reads zero while a batch is only
// partly enqueued.
type CheckQueue struct {
	ch      chan traffic.Vehicle
	pending atomic.Int64
	done    chan struct{}

	// mu is held shared by senders and exclusively by Close, so no vehicle
	// enters the buffer once Close returns.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	onReject func(v traffic.Vehicle, err error)
}

// NewCheckQueue creates a queue buffering up to capacity vehicles.
func NewCheckQueue(capacity int) *CheckQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &CheckQueue{
		ch:   make(chan traffic.Vehicle, capacity),
		done: make(chan struct{}),
	}
}

// OnReject sets the function told about every vehicle Submit refuses.
// Call it before the first Submit.
func (q *CheckQueue) OnReject(fn func(v traffic.Vehicle, err error)) {
	q.onReject = fn
}

// Submit enqueues the valid vehicles of batch in order, blocking while the
// queue is full. Invalid vehicles are skipped and passed to the OnReject
// function. It returns how many vehicles were enqueued; on cancellation or
// Close the remainder is released and an error returned.
func (q *CheckQueue) Submit(ctx context.Context, batch []traffic.Vehicle) (int, error) {
	batch = q.filter(batch)
	if len(batch) == 0 {
		return 0, nil
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, traffic.ErrStopped
	}

	q.pending.Add(int64(len(batch)))
	for i, v := range batch {
		select {
		case q.ch <- v:
		case <-ctx.Done():
			q.pending.Add(-int64(len(batch) - i))
			return i, ctx.Err()
		case <-q.done:
			q.pending.Add(-int64(len(batch) - i))
			return i, traffic.ErrStopped
		}
	}
	return len(batch), nil
}

// filter returns the vehicles of batch that pass validation.
func (q *CheckQueue) filter(batch []traffic.Vehicle) []traffic.Vehicle {
	var valid []traffic.Vehicle
	for i := range batch {
		err := batch[i].Validate()
		if err == nil {
			if valid != nil {
				valid = append(valid, batch[i])
			}
			continue
		}
		if valid == nil {
			valid = append(make([]traffic.Vehicle, 0, len(batch)), batch[:i]...)
		}
		if q.onReject != nil {
			q.onReject(batch[i], fmt.Errorf("vehicle at index %d: %w", i, err))
		}
	}
	if valid == nil {
		return batch
	}
	return valid
}

// C returns the channel the dispatcher receives from. Every receive must be
// followed by Dequeued.
func (q *CheckQueue) C() <-chan traffic.Vehicle {
	return q.ch
}

// Dequeued records that one vehicle left the queue.
func (q *CheckQueue) Dequeued() {
	q.pending.Add(-1)
}

// Pending returns the number of vehicles buffered or reserved by a Submit
// in progress.
func (q *CheckQueue) Pending() int {
	return int(q.pending.Load())
}

// Len returns the number of buffered vehicles.
func (q *CheckQueue) Len() int {
	return len(q.ch)
}

// Cap returns the buffer capacity.
func (q *CheckQueue) Cap() int {
	return cap(q.ch)
}

// Close rejects further submissions and wakes blocked submitters. It waits
// until no submitter can add to the buffer. Buffered vehicles stay
// readable through C.
func (q *CheckQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
	})
}

// Closed reports whether Close has been called.
func (q *CheckQueue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// drain removes every buffered vehicle without blocking.
func (q *CheckQueue) drain() []traffic.Vehicle {
	var out []traffic.Vehicle
	for {
		select {
		case v := <-q.ch:
			q.Dequeued()
			out = append(out, v)
		default:
			return out
		}
	}
}
