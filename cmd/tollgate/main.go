// Tollgate is a toll-road speed enforcement pipeline.
//
// It checks a stream of vehicle observations against the configured speed
// limits on a fixed pool of workers, issues fines for vehicles that are too
// slow or speeding, and keeps running statistics.
//
// Usage:
//
//	# Run the pipeline with the synthetic source and HTTP API
//	tollgate run
//
//	# Run with a configuration file, stopping after one minute
//	tollgate run --config tollgate.yaml --duration 1m
//
//	# Validate a configuration file
//	tollgate validate --config tollgate.yaml
//
//	# Query issued tickets
//	tollgate tickets query --kind SPEEDING --min-fine 50
//
//	# Follow the ticket file as it grows
//	tollgate tickets tail
//
//	# Watch the worker board of a running pipeline
//	tollgate status --addr 127.0.0.1:8080
package main

func main() {
	Execute()
}
