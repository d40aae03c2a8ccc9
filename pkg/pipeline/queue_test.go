package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/traffic"
)

func TestCheckQueue_SubmitFIFO(t *testing.T) {
	q := NewCheckQueue(8)
	n, err := q.Submit(context.Background(), batchOf(0, 5))
	if err != nil || n != 5 {
		t.Fatalf("Submit() = %d, %v", n, err)
	}
	if q.Pending() != 5 || q.Len() != 5 {
		t.Errorf("Pending=%d Len=%d, want 5/5", q.Pending(), q.Len())
	}

	for i := 0; i < 5; i++ {
		v := <-q.C()
		q.Dequeued()
		if want := batchOf(0, 5)[i].ID; v.ID != want {
			t.Errorf("dequeue %d = %s, want %s", i, v.ID, want)
		}
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() = %d after draining", q.Pending())
	}
}

func TestCheckQueue_SkipsInvalidVehicles(t *testing.T) {
	q := NewCheckQueue(8)
	var rejected []string
	q.OnReject(func(v traffic.Vehicle, err error) {
		if err == nil {
			t.Errorf("reject of %s without an error", v.ID)
		}
		rejected = append(rejected, v.ID)
	})

	batch := batchOf(0, 5)
	batch[1].Speed = -5
	batch[4].ID = ""

	n, err := q.Submit(context.Background(), batch)
	if err != nil || n != 3 {
		t.Fatalf("Submit() = %d, %v; want 3, nil", n, err)
	}
	if q.Pending() != 3 || q.Len() != 3 {
		t.Errorf("Pending=%d Len=%d, want 3/3", q.Pending(), q.Len())
	}
	if len(rejected) != 2 || rejected[0] != batch[1].ID || rejected[1] != "" {
		t.Errorf("rejected = %q, want [%s \"\"]", rejected, batch[1].ID)
	}

	for _, want := range []string{batch[0].ID, batch[2].ID, batch[3].ID} {
		v := <-q.C()
		q.Dequeued()
		if v.ID != want {
			t.Errorf("dequeued %s, want %s", v.ID, want)
		}
	}
}

func TestCheckQueue_AllInvalid(t *testing.T) {
	q := NewCheckQueue(8)
	batch := batchOf(0, 2)
	batch[0].Speed = -1
	batch[1].Speed = -2

	n, err := q.Submit(context.Background(), batch)
	if err != nil || n != 0 {
		t.Fatalf("Submit() = %d, %v; want 0, nil", n, err)
	}
	if q.Pending() != 0 || q.Len() != 0 {
		t.Error("rejected vehicles must not be counted as pending")
	}
}

func TestCheckQueue_BackpressureReservesWholeBatch(t *testing.T) {
	q := NewCheckQueue(2)
	done := make(chan int, 1)
	go func() {
		n, _ := q.Submit(context.Background(), batchOf(0, 4))
		done <- n
	}()

	// The submitter blocks with the buffer full but the whole batch counted.
	deadline := time.Now().Add(5 * time.Second)
	for q.Len() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("buffer never filled")
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case <-done:
		t.Fatal("Submit returned while the queue was full")
	default:
	}
	if q.Pending() != 4 {
		t.Errorf("Pending() = %d, want 4 while the batch is being submitted", q.Pending())
	}

	for i := 0; i < 4; i++ {
		<-q.C()
		q.Dequeued()
	}
	if n := <-done; n != 4 {
		t.Errorf("Submit() enqueued %d, want 4", n)
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", q.Pending())
	}
}

func TestCheckQueue_SubmitCancelled(t *testing.T) {
	q := NewCheckQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var enqueued int
	go func() {
		n, err := q.Submit(ctx, batchOf(0, 3))
		enqueued = n
		done <- err
	}()

	for q.Len() < 1 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if enqueued != 1 {
		t.Errorf("enqueued = %d, want 1", enqueued)
	}
	if q.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 (the buffered vehicle)", q.Pending())
	}
}

func TestCheckQueue_CloseWakesSubmitter(t *testing.T) {
	q := NewCheckQueue(1)
	done := make(chan error, 1)
	go func() {
		_, err := q.Submit(context.Background(), batchOf(0, 3))
		done <- err
	}()
	for q.Len() < 1 {
		time.Sleep(time.Millisecond)
	}

	q.Close()
	if err := <-done; !errors.Is(err, traffic.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if !q.Closed() {
		t.Error("Closed() = false after Close")
	}
	if _, err := q.Submit(context.Background(), batchOf(10, 1)); !errors.Is(err, traffic.ErrStopped) {
		t.Errorf("Submit after Close: expected ErrStopped, got %v", err)
	}

	// Buffered vehicles remain readable.
	if got := q.drain(); len(got) != 1 {
		t.Errorf("drain() = %d vehicles, want 1", len(got))
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() = %d after drain", q.Pending())
	}
}
