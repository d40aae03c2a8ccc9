package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/schedule"
	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/tickets/export"
	"mercator-hq/tollgate/pkg/traffic"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain tickets.
	// 0 means keep tickets forever.
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// ArchiveBeforeDelete writes pruned tickets to ArchivePath as JSON.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory to store archived tickets.
	ArchivePath string

	// MaxRecords is the maximum number of tickets to keep.
	// 0 means unlimited.
	MaxRecords int64
}

// FromConfig maps the YAML retention section onto Config.
func FromConfig(cfg *config.RetentionConfig) *Config {
	return &Config{
		RetentionDays:       cfg.Days,
		PruneSchedule:       cfg.Schedule,
		ArchiveBeforeDelete: cfg.ArchiveBeforeDelete,
		ArchivePath:         cfg.ArchivePath,
		MaxRecords:          cfg.MaxRecords,
	}
}

// Pruner enforces retention policies on stored tickets.
type Pruner struct {
	storage   tickets.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *schedule.Scheduler
	now       func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(storage tickets.Storage, cfg *Config) *Pruner {
	if cfg == nil {
		cfg = &Config{}
	}

	p := &Pruner{
		storage: storage,
		config:  cfg,
		logger:  slog.Default().With("component", "tickets.retention"),
		now:     time.Now,
	}
	p.scheduler = schedule.New("ticket-retention", cfg.PruneSchedule, func(ctx context.Context) error {
		_, err := p.Prune(ctx)
		return err
	})
	return p
}

// Prune deletes tickets older than the retention period, then the oldest
// tickets beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("ticket pruning completed",
			"total_deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Debug("no tickets pruned")
	}
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	query := &tickets.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		expired, err := p.storage.Query(ctx, &tickets.Query{
			EndTime:   &cutoff,
			Limit:     tickets.MaxLimit,
			SortBy:    "issued_at",
			SortOrder: "asc",
		})
		if err != nil {
			return 0, tickets.NewRetentionError(p.config.RetentionDays, err)
		}
		if err := p.archive(ctx, "age", expired); err != nil {
			return 0, tickets.NewRetentionError(p.config.RetentionDays, err)
		}
	}

	deleted, err := p.storage.Delete(ctx, query)
	if err != nil {
		return 0, tickets.NewRetentionError(p.config.RetentionDays, err)
	}
	p.logger.Info("pruned tickets by age",
		"deleted_count", deleted,
		"cutoff", cutoff,
	)
	return deleted, nil
}

// pruneByCount deletes the oldest tickets until at most MaxRecords remain.
// Tickets sharing the cutoff timestamp are deleted together.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &tickets.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	excess := count - p.config.MaxRecords
	if excess > tickets.MaxLimit {
		excess = tickets.MaxLimit
	}

	oldest, err := p.storage.Query(ctx, &tickets.Query{
		Limit:     int(excess),
		SortBy:    "issued_at",
		SortOrder: "asc",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query tickets: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, "count", oldest); err != nil {
			return 0, fmt.Errorf("archive failed: %w", err)
		}
	}

	cutoff := oldest[len(oldest)-1].IssuedAt
	deleted, err := p.storage.Delete(ctx, &tickets.Query{EndTime: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	p.logger.Info("pruned tickets by count",
		"deleted_count", deleted,
		"max_records", p.config.MaxRecords,
	)
	return deleted, nil
}

// archive writes list to a timestamped JSON file under ArchivePath.
func (p *Pruner) archive(ctx context.Context, reason string, list []*traffic.Ticket) error {
	if len(list) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.config.ArchivePath, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("tickets-%s-%s.json", reason, p.now().UTC().Format("2006-01-02-150405"))
	path := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	if err := export.NewJSONExporter(true).Export(ctx, list, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to export tickets to archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}

	p.logger.Info("tickets archived",
		"archive_file", path,
		"ticket_count", len(list),
	)
	return nil
}

// Start starts the automatic pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
