package stats

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS stats_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at INTEGER NOT NULL,
	final INTEGER NOT NULL DEFAULT 0,
	total_processed INTEGER NOT NULL,
	total_violations INTEGER NOT NULL,
	too_slow INTEGER NOT NULL,
	speeding INTEGER NOT NULL,
	violation_rate REAL NOT NULL,
	avg_speed REAL NOT NULL,
	max_speed REAL NOT NULL,
	total_fines TEXT NOT NULL,
	rejected INTEGER NOT NULL DEFAULT 0,
	dropped INTEGER NOT NULL,
	terminated INTEGER NOT NULL,
	abandoned INTEGER NOT NULL,
	batches INTEGER NOT NULL,
	started_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stats_snapshots_taken_at ON stats_snapshots(taken_at);
`

const snapshotColumns = `id, taken_at, final, total_processed, total_violations, too_slow, speeding,
	violation_rate, avg_speed, max_speed, total_fines, rejected, dropped, terminated, abandoned, batches, started_at`

// SQLiteConfig configures the SQLite snapshot store.
type SQLiteConfig struct {
	// Path is the database file path. Parent directories are created.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore persists snapshots in SQLite.
type SQLiteStore struct {
	db        *sql.DB
	saveStmt  *sql.Stmt
	closeOnce sync.Once
}

// NewSQLiteStore opens (or creates) the snapshot database.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	saveStmt, err := db.Prepare(`INSERT INTO stats_snapshots (
		taken_at, final, total_processed, total_violations, too_slow, speeding,
		violation_rate, avg_speed, max_speed, total_fines, rejected, dropped, terminated, abandoned, batches, started_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare save statement: %w", err)
	}

	return &SQLiteStore{db: db, saveStmt: saveStmt}, nil
}

// Save appends snap.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	st := snap.Stats
	_, err := s.saveStmt.ExecContext(ctx,
		snap.TakenAt.UnixNano(), snap.Final,
		st.TotalProcessed, st.TotalViolations, st.TooSlow, st.Speeding,
		st.ViolationRate, st.AvgSpeed, st.MaxSpeed, st.TotalFines.String(),
		st.Rejected, st.Dropped, st.Terminated, st.Abandoned, st.Batches, unixNano(st.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// List returns the snapshots in r, newest first.
func (s *SQLiteStore) List(ctx context.Context, r Range) ([]Snapshot, error) {
	var conds []string
	var args []any
	if !r.From.IsZero() {
		conds = append(conds, "taken_at >= ?")
		args = append(args, r.From.UnixNano())
	}
	if !r.To.IsZero() {
		conds = append(conds, "taken_at <= ?")
		args = append(args, r.To.UnixNano())
	}

	q := "SELECT " + snapshotColumns + " FROM stats_snapshots"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY taken_at DESC, id DESC"
	if r.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", r.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		var takenAt, startedAt int64
		var fines string
		st := &snap.Stats
		if err := rows.Scan(&snap.ID, &takenAt, &snap.Final,
			&st.TotalProcessed, &st.TotalViolations, &st.TooSlow, &st.Speeding,
			&st.ViolationRate, &st.AvgSpeed, &st.MaxSpeed, &fines,
			&st.Rejected, &st.Dropped, &st.Terminated, &st.Abandoned, &st.Batches, &startedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.TakenAt = time.Unix(0, takenAt).UTC()
		if startedAt != 0 {
			st.StartedAt = time.Unix(0, startedAt).UTC()
		}
		st.UpdatedAt = snap.TakenAt
		if st.TotalFines, err = decimal.NewFromString(fines); err != nil {
			return nil, fmt.Errorf("snapshot %d: invalid total_fines %q: %w", snap.ID, fines, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.saveStmt.Close()
		err = s.db.Close()
	})
	return err
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
