// Package recorder writes tickets to storage asynchronously.
//
// Workers hand tickets to the Recorder, which queues them on a buffered
// channel and persists them from a single background goroutine. Close
// drains the queue and reports every write that failed, so a shutdown
// flush can tell whether all tickets reached storage.
package recorder
