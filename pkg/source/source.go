// Package source paces synthetic vehicle batches into the check pipeline.
package source

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/traffic"
)

// Generator produces vehicle observations.
type Generator interface {
	Generate(n int) []traffic.Vehicle
}

// Submitter accepts batches, blocking while it is full. It returns how many
// vehicles it took.
type Submitter interface {
	Submit(ctx context.Context, batch []traffic.Vehicle) (int, error)
}

// Config controls batch pacing.
type Config struct {
	Interval time.Duration
	MinBatch int
	MaxBatch int
	Seed     uint64
}

// FromConfig maps the simulation section onto a source Config.
func FromConfig(cfg *config.SimulationConfig) Config {
	return Config{
		Interval: cfg.Interval,
		MinBatch: cfg.MinBatch,
		MaxBatch: cfg.MaxBatch,
		Seed:     cfg.Seed,
	}
}

// Source emits one batch immediately and then one per interval.
type Source struct {
	cfg    Config
	gen    Generator
	sub    Submitter
	logger *slog.Logger
	rng    *rand.Rand

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool

	batches     atomic.Int64
	submitted   atomic.Int64
	unsubmitted atomic.Int64
	rejected    atomic.Int64
}

// New creates a source. A nil logger uses slog.Default.
func New(cfg Config, gen Generator, sub Submitter, logger *slog.Logger) (*Source, error) {
	if cfg.Interval <= 0 {
		return nil, traffic.NewConfigError("simulation.interval", "must be positive, got %v", cfg.Interval)
	}
	if cfg.MinBatch < 1 || cfg.MaxBatch < cfg.MinBatch {
		return nil, traffic.NewConfigError("simulation.max_batch",
			"batch range [%d, %d] is invalid", cfg.MinBatch, cfg.MaxBatch)
	}
	if gen == nil || sub == nil {
		return nil, errors.New("source requires a generator and a submitter")
	}
	if logger == nil {
		logger = slog.Default()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Source{
		cfg:    cfg,
		gen:    gen,
		sub:    sub,
		logger: logger.With("component", "source"),
		rng:    rand.New(rand.NewPCG(seed, ^seed)),
	}, nil
}

// Run emits batches until ctx is cancelled, Stop is called or the submitter
// reports traffic.ErrStopped. Those endings return nil. Any other submit
// error is logged and the next batch follows on schedule.
func (s *Source) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("source already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("vehicle source started",
		"interval", s.cfg.Interval,
		"min_batch", s.cfg.MinBatch,
		"max_batch", s.cfg.MaxBatch,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.emit(ctx); err != nil {
			if errors.Is(err, traffic.ErrStopped) || ctx.Err() != nil {
				s.logStopped()
				return nil
			}
			s.logger.Error("batch submit failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logStopped()
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Source) logStopped() {
	s.logger.Info("vehicle source stopped",
		"batches", s.batches.Load(),
		"submitted", s.submitted.Load(),
		"unsubmitted", s.unsubmitted.Load(),
		"rejected", s.rejected.Load(),
	)
}

// emit generates and submits one batch.
func (s *Source) emit(ctx context.Context) error {
	n := s.cfg.MinBatch + s.rng.IntN(s.cfg.MaxBatch-s.cfg.MinBatch+1)
	batch := s.gen.Generate(n)

	taken, err := s.sub.Submit(ctx, batch)
	s.submitted.Add(int64(taken))
	if err != nil {
		if rest := len(batch) - taken; rest > 0 {
			s.unsubmitted.Add(int64(rest))
			s.logger.Warn("batch not fully submitted",
				"batch_size", len(batch),
				"submitted", taken,
				"unsubmitted", rest,
				"error", err,
			)
		}
		return err
	}

	seq := s.batches.Add(1)
	if rest := len(batch) - taken; rest > 0 {
		s.rejected.Add(int64(rest))
		s.logger.Warn("vehicles rejected from batch",
			"seq", seq,
			"batch_size", len(batch),
			"rejected", rest,
		)
	}
	s.logger.Debug("batch submitted", "seq", seq, "batch_size", n)
	return nil
}

// Stop ends Run. A submit blocked on a full queue is abandoned and its
// remainder counted as unsubmitted.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Batches returns the number of fully submitted batches.
func (s *Source) Batches() int64 { return s.batches.Load() }

// Submitted returns the number of vehicles handed to the submitter.
func (s *Source) Submitted() int64 { return s.submitted.Load() }

// Rejected returns the number of vehicles the submitter refused as invalid.
func (s *Source) Rejected() int64 { return s.rejected.Load() }

// Unsubmitted returns the number of generated vehicles that never made it
// into the queue.
func (s *Source) Unsubmitted() int64 { return s.unsubmitted.Load() }
