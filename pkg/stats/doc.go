// Package stats keeps a history of pipeline statistics.
//
// A Snapshotter copies the live aggregate on a cron schedule (every
// minute by default) and once more at shutdown, and appends each copy to
// a Store. SQLiteStore persists snapshots with the pure-Go
// modernc.org/sqlite driver so the history can be read by
// "tollgate stats history" while the pipeline runs.
package stats
