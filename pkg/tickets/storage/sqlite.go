package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/tollgate/pkg/tickets"
	"mercator-hq/tollgate/pkg/traffic"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/tickets.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	insert *sql.Stmt
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite storage backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "tickets.storage.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, tickets.NewStorageError("sqlite", "open", err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, tickets.NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.insert, err = db.Prepare(insertTicket)
	if err != nil {
		db.Close()
		return nil, tickets.NewStorageError("sqlite", "prepare", err)
	}

	logger.Info("SQLite ticket storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up pragmas, the schema and the schema version.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return tickets.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return tickets.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return tickets.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return tickets.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return tickets.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return tickets.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists a ticket.
func (s *SQLiteStorage) Store(ctx context.Context, t *traffic.Ticket) error {
	_, err := s.insert.ExecContext(ctx,
		t.ID, t.VehicleID, t.LicensePlate, string(t.VehicleType), string(t.Kind), t.Band,
		t.Speed, t.SpeedLimitUsed,
		t.BaseFine.String(), t.PenaltyMultiplier.String(), t.TotalFine.String(), t.TotalFine.InexactFloat64(), t.Clamped,
		t.STNKActive, t.SIMActive,
		t.Location, t.IssuedAt.UTC(), string(t.Status),
	)
	if err != nil {
		return tickets.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves tickets matching the query filters.
func (s *SQLiteStorage) Query(ctx context.Context, query *tickets.Query) ([]*traffic.Ticket, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	q := *query
	q.ApplyDefaults()

	where, args := buildWhereClause(&q)
	sqlQuery := "SELECT " + ticketColumns + " FROM tickets"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	sortCol := q.SortBy
	if sortCol == "total_fine" {
		sortCol = "total_fine_num"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY %s %s LIMIT %d", sortCol, strings.ToUpper(q.SortOrder), q.Limit)
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, tickets.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	out := []*traffic.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, tickets.NewStorageError("sqlite", "scan", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, tickets.NewStorageError("sqlite", "query", err)
	}
	return out, nil
}

// Count returns the number of tickets matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *tickets.Query) (int64, error) {
	where, args := buildWhereClause(query)
	sqlQuery := "SELECT COUNT(*) FROM tickets"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, tickets.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes tickets matching the query filters.
func (s *SQLiteStorage) Delete(ctx context.Context, query *tickets.Query) (int64, error) {
	where, args := buildWhereClause(query)
	sqlQuery := "DELETE FROM tickets"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, tickets.NewStorageError("sqlite", "delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, tickets.NewStorageError("sqlite", "delete", err)
	}
	return n, nil
}

// Ping verifies the database connection. Used by readiness checks.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	if err := s.db.Close(); err != nil {
		return tickets.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite ticket storage closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause from query filters.
// Returns the clause (without "WHERE") and its arguments.
func buildWhereClause(query *tickets.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if query.StartTime != nil {
		conditions = append(conditions, "issued_at >= ?")
		args = append(args, query.StartTime.UTC())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "issued_at <= ?")
		args = append(args, query.EndTime.UTC())
	}
	if query.LicensePlate != "" {
		conditions = append(conditions, "license_plate = ? COLLATE NOCASE")
		args = append(args, query.LicensePlate)
	}
	if query.VehicleType != "" {
		conditions = append(conditions, "vehicle_type = ?")
		args = append(args, query.VehicleType)
	}
	if query.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, query.Kind)
	}
	if query.Band != "" {
		conditions = append(conditions, "band = ?")
		args = append(args, query.Band)
	}
	if query.MinFine != nil {
		conditions = append(conditions, "total_fine_num >= ?")
		args = append(args, *query.MinFine)
	}
	if query.MaxFine != nil {
		conditions = append(conditions, "total_fine_num <= ?")
		args = append(args, *query.MaxFine)
	}

	return strings.Join(conditions, " AND "), args
}

// scanTicket scans a database row into a Ticket.
func scanTicket(rows *sql.Rows) (*traffic.Ticket, error) {
	var t traffic.Ticket
	var vehicleType, kind, status string
	var fineNum float64

	err := rows.Scan(
		&t.ID, &t.VehicleID, &t.LicensePlate, &vehicleType, &kind, &t.Band,
		&t.Speed, &t.SpeedLimitUsed,
		&t.BaseFine, &t.PenaltyMultiplier, &t.TotalFine, &fineNum, &t.Clamped,
		&t.STNKActive, &t.SIMActive,
		&t.Location, &t.IssuedAt, &status,
	)
	if err != nil {
		return nil, err
	}

	t.VehicleType = traffic.VehicleType(vehicleType)
	t.Kind = traffic.ViolationKind(kind)
	t.Status = traffic.TicketStatus(status)
	return &t, nil
}
