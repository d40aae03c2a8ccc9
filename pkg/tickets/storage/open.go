package storage

import (
	"fmt"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/tickets"
)

// Open creates the storage backend selected by cfg.Backend.
func Open(cfg *config.TicketsConfig) (tickets.Storage, error) {
	switch cfg.Backend {
	case "jsonl":
		return NewJSONLStorage(JSONLConfig{
			Path:           cfg.JSONL.Path,
			SyncEveryWrite: cfg.JSONL.SyncEveryWrite,
		})
	case "sqlite":
		return NewSQLiteStorage(&SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported ticket storage backend: %s", cfg.Backend)
	}
}
