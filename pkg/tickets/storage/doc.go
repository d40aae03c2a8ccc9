// Package storage implements the ticket storage backends.
//
//   - JSONLStorage appends one JSON object per line to a file. It is the
//     default backend and the format followed by "tollgate tickets tail".
//   - SQLiteStorage stores tickets in a SQLite database (github.com/mattn/go-sqlite3)
//     with WAL mode and indexes on issue time, plate and fine.
//   - MemoryStorage keeps tickets in memory, for tests and dry runs.
//
// Open selects a backend from configuration.
package storage
