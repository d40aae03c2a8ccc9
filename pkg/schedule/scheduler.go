// Package schedule runs background jobs on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work. Errors are logged, never retried.
type Job func(ctx context.Context) error

// Scheduler runs a single job on a cron schedule.
//
// Accepted expressions are the standard five-field form plus the
// descriptors understood by robfig/cron ("@every 1m", "@daily", ...):
//   - "0 3 * * *"    - Daily at 3 AM
//   - "*/5 * * * *"  - Every 5 minutes
//   - "@every 1m"    - Every minute from start
type Scheduler struct {
	name     string
	schedule string
	job      Job
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// New creates a scheduler for job. Name appears in logs.
func New(name, schedule string, job Job) *Scheduler {
	return &Scheduler{
		name:     name,
		schedule: schedule,
		job:      job,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "schedule", "job", name),
	}
}

// Start schedules the job. An empty schedule disables the scheduler.
// The scheduler stops on its own when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.schedule == "" {
		s.logger.Info("schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", s.name, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled job failed", "error", err)
		return
	}
	s.logger.Debug("scheduled job completed", "duration_ms", time.Since(start).Milliseconds())
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled run, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
