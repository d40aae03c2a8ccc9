package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New("test", "not a schedule", func(context.Context) error { return nil })
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running")
	}
}

func TestScheduler_EmptyScheduleDisabled(t *testing.T) {
	s := New("test", "", func(context.Context) error { return nil })
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("empty schedule should leave the scheduler stopped")
	}
	if s.NextRun() != nil {
		t.Error("NextRun() should be nil without a schedule")
	}
}

func TestScheduler_RunsJob(t *testing.T) {
	var runs atomic.Int32
	ran := make(chan struct{}, 4)
	s := New("test", "@every 1s", func(context.Context) error {
		runs.Add(1)
		ran <- struct{}{}
		return errors.New("logged, not fatal")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if next := s.NextRun(); next == nil || next.Before(time.Now().Add(-time.Second)) {
		t.Errorf("unexpected NextRun() = %v", next)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler still running after Stop()")
	}
	s.Stop()
	if runs.Load() < 1 {
		t.Error("expected at least one run")
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := New("test", "@every 1h", func(context.Context) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
