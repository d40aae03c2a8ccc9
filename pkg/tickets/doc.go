// Package tickets defines ticket persistence: the Storage interface shared by
// every backend, the Query filter, and the typed errors raised by storage,
// recording, retention and export.
//
// Subpackages:
//
//   - storage: jsonl (append-only JSON Lines file), sqlite and memory backends
//   - recorder: asynchronous writer that drains on Close
//   - export: JSON and CSV exporters
//   - retention: age and count based pruning on a cron schedule
//
// Tickets are written once and never updated. Retention is the only path that
// removes them.
package tickets
