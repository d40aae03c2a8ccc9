package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/schedule"
	"mercator-hq/tollgate/pkg/traffic"
)

// Snapshotter saves the live statistics to a Store on a schedule.
type Snapshotter struct {
	store    Store
	schedule string
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	scheduler *schedule.Scheduler
}

// NewSnapshotter creates a snapshotter writing to store. An empty
// schedule disables periodic snapshots; Final still saves.
func NewSnapshotter(store Store, cronSchedule string) *Snapshotter {
	return &Snapshotter{
		store:    store,
		schedule: cronSchedule,
		logger:   slog.Default().With("component", "stats.snapshotter"),
		now:      time.Now,
	}
}

// Start saves a snapshot of src on every scheduled tick until ctx is done.
func (s *Snapshotter) Start(ctx context.Context, src Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return fmt.Errorf("snapshotter already started")
	}
	s.scheduler = schedule.New("stats-snapshot", s.schedule, func(ctx context.Context) error {
		return s.save(ctx, src.Stats(), false)
	})
	return s.scheduler.Start(ctx)
}

// Stop stops periodic snapshots.
func (s *Snapshotter) Stop() {
	s.mu.Lock()
	sched := s.scheduler
	s.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
}

// Final saves the closing snapshot taken during shutdown.
func (s *Snapshotter) Final(ctx context.Context, st traffic.Stats) error {
	return s.save(ctx, st, true)
}

func (s *Snapshotter) save(ctx context.Context, st traffic.Stats, final bool) error {
	snap := Snapshot{TakenAt: s.now().UTC(), Final: final, Stats: st}
	if err := s.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save stats snapshot: %w", err)
	}
	s.logger.Debug("stats snapshot saved",
		"final", final,
		"processed", st.TotalProcessed,
		"violations", st.TotalViolations,
	)
	return nil
}
