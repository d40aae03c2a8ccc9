package stats

import (
	"context"
	"time"

	"mercator-hq/tollgate/pkg/traffic"
)

// Snapshot is one saved copy of the pipeline statistics.
type Snapshot struct {
	ID      int64         `json:"id,omitempty"`
	TakenAt time.Time     `json:"taken_at"`
	Final   bool          `json:"final"` // written during shutdown
	Stats   traffic.Stats `json:"stats"`
}

// Range selects snapshots by time. Zero values do not filter.
type Range struct {
	From  time.Time
	To    time.Time
	Limit int // newest first; 0 means all
}

func (r Range) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Store persists snapshots. Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error

	// List returns snapshots in r, newest first.
	List(ctx context.Context, r Range) ([]Snapshot, error)

	Close() error
}

// Source provides the live statistics.
type Source interface {
	Stats() traffic.Stats
}
