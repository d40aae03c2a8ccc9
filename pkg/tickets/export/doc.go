// Package export writes tickets as JSON or CSV.
//
// Both exporters implement tickets.Exporter. JSONExporter emits a single
// array (optionally indented); CSVExporter emits one row per ticket with
// an optional header. Money columns are written as exact decimal strings.
package export
