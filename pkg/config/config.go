package config

import "time"

// Config is the root configuration structure for tollgate.
// It contains all configuration sections for the vehicle simulation, the check
// pipeline, the fine rules, ticket and statistics storage, the HTTP API and
// telemetry.
type Config struct {
	// Simulation controls the synthetic vehicle source.
	Simulation SimulationConfig `yaml:"simulation"`

	// Pipeline controls the worker pool, queue and shutdown behavior.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Rules contains the speed thresholds and fine schedule.
	Rules RulesConfig `yaml:"rules"`

	// Tickets contains configuration for ticket storage including backend
	// selection, the async recorder, retention and export settings.
	Tickets TicketsConfig `yaml:"tickets"`

	// Stats contains configuration for periodic statistics snapshots.
	Stats StatsConfig `yaml:"stats"`

	// Server contains configuration for the HTTP status API.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SimulationConfig contains configuration for the synthetic vehicle source.
type SimulationConfig struct {
	// Enabled starts the synthetic source with the pipeline.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Interval is the time between two batches.
	// Default: 3s
	Interval time.Duration `yaml:"interval"`

	// MinBatch and MaxBatch bound the number of vehicles per batch (inclusive).
	// Default: 10 and 15
	MinBatch int `yaml:"min_batch"`
	MaxBatch int `yaml:"max_batch"`

	// Seed seeds the generator. Zero picks a time-based seed.
	Seed uint64 `yaml:"seed"`

	// SpeedMean and SpeedStdDev parameterize the normal speed distribution (km/h).
	// Default: 85 and 8
	SpeedMean   float64 `yaml:"speed_mean"`
	SpeedStdDev float64 `yaml:"speed_stddev"`

	// SpeedMin and SpeedMax clip generated speeds.
	// Default: 40 and 140
	SpeedMin float64 `yaml:"speed_min"`
	SpeedMax float64 `yaml:"speed_max"`

	// TypeWeights is the relative frequency of each vehicle type.
	// Default: car 75, truck 25
	TypeWeights map[string]float64 `yaml:"type_weights"`

	// TypeSpeedMeans overrides SpeedMean per vehicle type.
	// Default: truck 70
	TypeSpeedMeans map[string]float64 `yaml:"type_speed_means"`

	// STNKActiveRatio and SIMActiveRatio are the probabilities that a
	// vehicle's registration and driver licence are valid.
	// Default: 0.9 and 0.9
	STNKActiveRatio float64 `yaml:"stnk_active_ratio"`
	SIMActiveRatio  float64 `yaml:"sim_active_ratio"`

	// RepeatRatio is the probability of reusing a plate already seen.
	// Default: 0.1
	RepeatRatio float64 `yaml:"repeat_ratio"`

	// Location is the sensor identifier stamped on every vehicle.
	// Default: "Highway-Sensor-001"
	Location string `yaml:"location"`
}

// PipelineConfig contains configuration for the check pipeline.
type PipelineConfig struct {
	// Workers is the number of concurrent checks.
	// Default: 5
	Workers int `yaml:"workers"`

	// QueueCapacity is the number of vehicles the check queue can hold before
	// Submit blocks.
	// Default: 64
	QueueCapacity int `yaml:"queue_capacity"`

	// ShutdownTimeout bounds the drain phase of a stop. In-flight checks still
	// running when it expires are terminated.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// CheckLatency is the minimum simulated duration of one check.
	// Default: 100ms
	CheckLatency time.Duration `yaml:"check_latency"`

	// CheckJitter is the range of the plate-derived extra latency.
	// Default: 100ms
	CheckJitter time.Duration `yaml:"check_jitter"`

	// EventBuffer is the per-subscriber event channel size.
	// Default: 256
	EventBuffer int `yaml:"event_buffer"`
}

// RulesConfig contains the speed thresholds and the fine schedule.
type RulesConfig struct {
	// MinSpeedLimit is the minimum legal speed (km/h).
	// Default: 60
	MinSpeedLimit float64 `yaml:"min_speed_limit"`

	// SpeedLimit is the maximum legal speed (km/h).
	// Default: 100
	SpeedLimit float64 `yaml:"speed_limit"`

	// TypeSpeedLimits overrides SpeedLimit per vehicle type.
	// Default: truck 80
	TypeSpeedLimits map[string]float64 `yaml:"type_speed_limits"`

	// LowBands is the fine table for TOO_SLOW violations.
	LowBands []BandConfig `yaml:"low_bands"`

	// HighBands is the fine table for SPEEDING violations.
	HighBands []BandConfig `yaml:"high_bands"`

	// STNKPenalty is added to the fine multiplier when the registration is inactive.
	// Default: 0.2
	STNKPenalty float64 `yaml:"stnk_penalty"`

	// SIMPenalty is added to the fine multiplier when the driver licence is inactive.
	// Default: 0.2
	SIMPenalty float64 `yaml:"sim_penalty"`

	// MaxFine caps every computed fine.
	// Default: 100
	MaxFine float64 `yaml:"max_fine"`
}

// BandConfig is one tier of a fine table.
type BandConfig struct {
	Name string  `yaml:"name"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Fine float64 `yaml:"fine"`
}

// TicketsConfig contains configuration for ticket storage.
type TicketsConfig struct {
	// Backend selects the storage backend.
	// Options: "jsonl", "sqlite", "memory"
	// Default: "jsonl"
	Backend string `yaml:"backend"`

	// JSONL contains append-only file backend settings.
	JSONL JSONLConfig `yaml:"jsonl"`

	// SQLite contains SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains async recorder settings.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains retention policy settings.
	Retention RetentionConfig `yaml:"retention"`

	// Export contains export format settings.
	Export ExportConfig `yaml:"export"`
}

// JSONLConfig contains configuration for the JSON Lines ticket file.
type JSONLConfig struct {
	// Path is the ticket file path.
	// Default: "data/tickets.jsonl"
	Path string `yaml:"path"`

	// SyncEveryWrite fsyncs after each ticket instead of only on close.
	// Default: false
	SyncEveryWrite bool `yaml:"sync_every_write"`
}

// SQLiteConfig contains configuration for the SQLite ticket backend.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/tickets.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains configuration for the async ticket recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single storage write and an enqueue on a full buffer.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains configuration for ticket retention.
type RetentionConfig struct {
	// Days is the number of days to keep tickets (0 = keep forever).
	// Default: 0
	Days int `yaml:"days"`

	// Schedule is the cron expression for running the pruner.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// ArchiveBeforeDelete writes pruned tickets to ArchivePath first.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the directory for archived tickets.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords caps the number of stored tickets (0 = unlimited).
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`
}

// ExportConfig contains ticket export settings.
type ExportConfig struct {
	// JSONPretty indents JSON exports.
	// Default: true
	JSONPretty bool `yaml:"json_pretty"`

	// CSVHeader writes a header row in CSV exports.
	// Default: true
	CSVHeader bool `yaml:"csv_header"`
}

// StatsConfig contains configuration for statistics history.
type StatsConfig struct {
	// Enabled turns on periodic snapshots.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the statistics database file path.
	// Default: "data/stats.db"
	Path string `yaml:"path"`

	// Schedule is the cron expression for snapshots.
	// Default: "@every 1m"
	Schedule string `yaml:"schedule"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// ServerConfig contains configuration for the HTTP status API.
type ServerConfig struct {
	// Enabled starts the HTTP API with the pipeline.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response. Event
	// streams are exempt.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds the graceful HTTP shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds non-streaming handlers.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "tollgate"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "pipeline"
	Subsystem string `yaml:"subsystem"`

	// CheckDurationBuckets defines histogram buckets for check duration (seconds).
	// Default: [0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1.0]
	CheckDurationBuckets []float64 `yaml:"check_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "tollgate"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of checks to trace (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
