// Package traffic defines the shared data model of the enforcement pipeline.
//
// Every entity that crosses a component boundary has exactly one struct here:
// the observed Vehicle, the CheckResult produced for it, the Ticket issued for
// a violation, the WorkerSlot published on the status board and the Stats
// snapshot kept by the aggregator. The package also owns the typed errors
// shared across components (ConfigError, EvaluationError, FlushError).
//
// Values are plain data. Vehicles and Tickets are treated as immutable once
// created; callers copy rather than mutate them.
package traffic
