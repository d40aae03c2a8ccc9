package config

import "time"

// Default values for configuration fields.
const (
	// Simulation defaults
	DefaultSimulationEnabled     = true
	DefaultSimulationInterval    = 3 * time.Second
	DefaultSimulationMinBatch    = 10
	DefaultSimulationMaxBatch    = 15
	DefaultSimulationSpeedMean   = 85.0
	DefaultSimulationSpeedStdDev = 8.0
	DefaultSimulationSpeedMin    = 40.0
	DefaultSimulationSpeedMax    = 140.0
	DefaultSimulationSTNKRatio   = 0.9
	DefaultSimulationSIMRatio    = 0.9
	DefaultSimulationRepeatRatio = 0.1
	DefaultSimulationLocation    = "Highway-Sensor-001"

	// Pipeline defaults
	DefaultPipelineWorkers         = 5
	DefaultPipelineQueueCapacity   = 64
	DefaultPipelineShutdownTimeout = 10 * time.Second
	DefaultPipelineCheckLatency    = 100 * time.Millisecond
	DefaultPipelineCheckJitter     = 100 * time.Millisecond
	DefaultPipelineEventBuffer     = 256

	// Rules defaults
	DefaultMinSpeedLimit = 60.0
	DefaultSpeedLimit    = 100.0
	DefaultTruckLimit    = 80.0
	DefaultSTNKPenalty   = 0.2
	DefaultSIMPenalty    = 0.2
	DefaultMaxFine       = 100.0

	// Tickets defaults
	DefaultTicketsBackend           = "jsonl"
	DefaultTicketsJSONLPath         = "data/tickets.jsonl"
	DefaultTicketsSQLitePath        = "data/tickets.db"
	DefaultTicketsSQLiteMaxOpen     = 10
	DefaultTicketsSQLiteMaxIdle     = 5
	DefaultTicketsSQLiteWALMode     = true
	DefaultTicketsSQLiteBusyTimeout = 5 * time.Second
	DefaultRecorderAsyncBuffer      = 1000
	DefaultRecorderWriteTimeout     = 5 * time.Second
	DefaultRetentionSchedule        = "0 3 * * *"
	DefaultRetentionArchivePath     = "data/archives/"
	DefaultExportJSONPretty         = true
	DefaultExportCSVHeader          = true

	// Stats defaults
	DefaultStatsEnabled     = true
	DefaultStatsPath        = "data/stats.db"
	DefaultStatsSchedule    = "@every 1m"
	DefaultStatsBusyTimeout = 5 * time.Second

	// Server defaults
	DefaultServerEnabled         = true
	DefaultListenAddress         = "127.0.0.1:8080"
	DefaultReadTimeout           = 15 * time.Second
	DefaultWriteTimeout          = 15 * time.Second
	DefaultIdleTimeout           = 60 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultRequestTimeout        = 10 * time.Second

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "tollgate"
	DefaultMetricsSubsystem   = "pipeline"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "tollgate"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingInsecure    = true
	DefaultTracingTimeout     = 10 * time.Second
)

// DefaultCheckDurationBuckets are the check duration histogram buckets in seconds.
var DefaultCheckDurationBuckets = []float64{0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1.0}

// DefaultTypeWeights returns the default vehicle type mix.
func DefaultTypeWeights() map[string]float64 {
	return map[string]float64{"car": 75, "truck": 25}
}

// DefaultTypeSpeedMeans returns the default per-type mean speeds.
func DefaultTypeSpeedMeans() map[string]float64 {
	return map[string]float64{"truck": 70}
}

// DefaultTypeSpeedLimits returns the default per-type speed limits.
func DefaultTypeSpeedLimits() map[string]float64 {
	return map[string]float64{"truck": DefaultTruckLimit}
}

// DefaultLowBands returns the default TOO_SLOW fine table.
func DefaultLowBands() []BandConfig {
	return []BandConfig{
		{Name: "SPEED_LOW_SEVERE", Min: 0, Max: 49, Fine: 35},
		{Name: "SPEED_LOW_MILD", Min: 50, Max: 59, Fine: 20},
	}
}

// DefaultHighBands returns the default SPEEDING fine table.
func DefaultHighBands() []BandConfig {
	return []BandConfig{
		{Name: "SPEED_HIGH_LEVEL_1", Min: 101, Max: 110, Fine: 30},
		{Name: "SPEED_HIGH_LEVEL_2", Min: 111, Max: 120, Fine: 50},
		{Name: "SPEED_HIGH_LEVEL_3", Min: 121, Max: 150, Fine: 75},
	}
}

// DefaultConfig returns a complete configuration with every default applied.
// LoadConfig decodes YAML on top of it, so fields absent from the file keep
// these values and explicit zero values are preserved.
func DefaultConfig() *Config {
	cfg := &Config{
		Simulation: SimulationConfig{
			Enabled:         DefaultSimulationEnabled,
			STNKActiveRatio: DefaultSimulationSTNKRatio,
			SIMActiveRatio:  DefaultSimulationSIMRatio,
			RepeatRatio:     DefaultSimulationRepeatRatio,
		},
		Rules: RulesConfig{
			STNKPenalty: DefaultSTNKPenalty,
			SIMPenalty:  DefaultSIMPenalty,
		},
		Tickets: TicketsConfig{
			SQLite: SQLiteConfig{WALMode: DefaultTicketsSQLiteWALMode},
			Export: ExportConfig{
				JSONPretty: DefaultExportJSONPretty,
				CSVHeader:  DefaultExportCSVHeader,
			},
		},
		Stats:  StatsConfig{Enabled: DefaultStatsEnabled},
		Server: ServerConfig{Enabled: DefaultServerEnabled},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{Insecure: DefaultTracingInsecure},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields whose zero value is never meaningful.
func ApplyDefaults(cfg *Config) {
	// Simulation defaults
	if cfg.Simulation.Interval == 0 {
		cfg.Simulation.Interval = DefaultSimulationInterval
	}
	if cfg.Simulation.MinBatch == 0 {
		cfg.Simulation.MinBatch = DefaultSimulationMinBatch
	}
	if cfg.Simulation.MaxBatch == 0 {
		cfg.Simulation.MaxBatch = DefaultSimulationMaxBatch
	}
	if cfg.Simulation.SpeedMean == 0 {
		cfg.Simulation.SpeedMean = DefaultSimulationSpeedMean
	}
	if cfg.Simulation.SpeedStdDev == 0 {
		cfg.Simulation.SpeedStdDev = DefaultSimulationSpeedStdDev
	}
	if cfg.Simulation.SpeedMin == 0 {
		cfg.Simulation.SpeedMin = DefaultSimulationSpeedMin
	}
	if cfg.Simulation.SpeedMax == 0 {
		cfg.Simulation.SpeedMax = DefaultSimulationSpeedMax
	}
	if len(cfg.Simulation.TypeWeights) == 0 {
		cfg.Simulation.TypeWeights = DefaultTypeWeights()
	}
	if cfg.Simulation.TypeSpeedMeans == nil {
		cfg.Simulation.TypeSpeedMeans = DefaultTypeSpeedMeans()
	}
	if cfg.Simulation.Location == "" {
		cfg.Simulation.Location = DefaultSimulationLocation
	}

	// Pipeline defaults
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = DefaultPipelineWorkers
	}
	if cfg.Pipeline.QueueCapacity == 0 {
		cfg.Pipeline.QueueCapacity = DefaultPipelineQueueCapacity
	}
	if cfg.Pipeline.ShutdownTimeout == 0 {
		cfg.Pipeline.ShutdownTimeout = DefaultPipelineShutdownTimeout
	}
	if cfg.Pipeline.CheckLatency == 0 {
		cfg.Pipeline.CheckLatency = DefaultPipelineCheckLatency
	}
	if cfg.Pipeline.CheckJitter == 0 {
		cfg.Pipeline.CheckJitter = DefaultPipelineCheckJitter
	}
	if cfg.Pipeline.EventBuffer == 0 {
		cfg.Pipeline.EventBuffer = DefaultPipelineEventBuffer
	}

	// Rules defaults
	if cfg.Rules.MinSpeedLimit == 0 {
		cfg.Rules.MinSpeedLimit = DefaultMinSpeedLimit
	}
	if cfg.Rules.SpeedLimit == 0 {
		cfg.Rules.SpeedLimit = DefaultSpeedLimit
	}
	if cfg.Rules.TypeSpeedLimits == nil {
		cfg.Rules.TypeSpeedLimits = DefaultTypeSpeedLimits()
	}
	if len(cfg.Rules.LowBands) == 0 {
		cfg.Rules.LowBands = DefaultLowBands()
	}
	if len(cfg.Rules.HighBands) == 0 {
		cfg.Rules.HighBands = DefaultHighBands()
	}
	if cfg.Rules.MaxFine == 0 {
		cfg.Rules.MaxFine = DefaultMaxFine
	}

	// Tickets defaults
	if cfg.Tickets.Backend == "" {
		cfg.Tickets.Backend = DefaultTicketsBackend
	}
	if cfg.Tickets.JSONL.Path == "" {
		cfg.Tickets.JSONL.Path = DefaultTicketsJSONLPath
	}
	if cfg.Tickets.SQLite.Path == "" {
		cfg.Tickets.SQLite.Path = DefaultTicketsSQLitePath
	}
	if cfg.Tickets.SQLite.MaxOpenConns == 0 {
		cfg.Tickets.SQLite.MaxOpenConns = DefaultTicketsSQLiteMaxOpen
	}
	if cfg.Tickets.SQLite.MaxIdleConns == 0 {
		cfg.Tickets.SQLite.MaxIdleConns = DefaultTicketsSQLiteMaxIdle
	}
	if cfg.Tickets.SQLite.BusyTimeout == 0 {
		cfg.Tickets.SQLite.BusyTimeout = DefaultTicketsSQLiteBusyTimeout
	}
	if cfg.Tickets.Recorder.AsyncBuffer == 0 {
		cfg.Tickets.Recorder.AsyncBuffer = DefaultRecorderAsyncBuffer
	}
	if cfg.Tickets.Recorder.WriteTimeout == 0 {
		cfg.Tickets.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}
	if cfg.Tickets.Retention.Schedule == "" {
		cfg.Tickets.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Tickets.Retention.ArchivePath == "" {
		cfg.Tickets.Retention.ArchivePath = DefaultRetentionArchivePath
	}

	// Stats defaults
	if cfg.Stats.Path == "" {
		cfg.Stats.Path = DefaultStatsPath
	}
	if cfg.Stats.Schedule == "" {
		cfg.Stats.Schedule = DefaultStatsSchedule
	}
	if cfg.Stats.BusyTimeout == 0 {
		cfg.Stats.BusyTimeout = DefaultStatsBusyTimeout
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.CheckDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.CheckDurationBuckets = append([]float64(nil), DefaultCheckDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}
