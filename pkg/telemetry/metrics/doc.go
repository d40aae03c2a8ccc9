// Package metrics exposes pipeline metrics in the Prometheus format.
//
// A Collector owns a private registry so tests and multiple pipelines in one
// process never collide on metric names. All recording methods are safe to
// call on a nil *Collector and are no-ops when metrics are disabled, so
// components can record unconditionally.
//
// Metrics (namespace and subsystem configurable, default tollgate_pipeline_):
//
//	vehicles_checked_total{verdict}     counter
//	check_duration_seconds{verdict}     histogram
//	evaluation_failures_total{reason}   counter
//	fines_issued_total{kind}            counter
//	fine_amount_total{kind}             counter
//	inflight_checks                     gauge
//	queue_depth                         gauge
//	worker_busy{worker}                 gauge
//	batches_completed_total             counter
//	batch_size                          histogram
//	vehicles_lost_total{reason}         counter
//	tickets_written_total{result}       counter
package metrics
