// Package pipeline runs the concurrent violation-detection pipeline.
//
// Vehicles enter through a bounded CheckQueue. A single dispatcher
// goroutine assigns each vehicle to a free worker slot (round robin) and
// evaluates it in its own goroutine, at most Workers at a time. Results
// flow back over a completion channel to the Aggregator and the
// StatusBoard, and every state change is published on the EventBus.
//
// A batch is complete when the queue holds no pending vehicles, including
// those of a batch still being submitted, and no check is in flight.
//
// Stop closes the queue, drains queued and in-flight vehicles for up to
// the shutdown timeout, then cancels whatever is still running and
// flushes the aggregator.
package pipeline
