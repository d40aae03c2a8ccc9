package config

import (
	"fmt"
	"math"
	"net"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "pipeline.workers").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateSimulation(&cfg.Simulation)...)
	errs = append(errs, validatePipeline(&cfg.Pipeline)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateTickets(&cfg.Tickets)...)
	errs = append(errs, validateStats(&cfg.Stats)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateSimulation(cfg *SimulationConfig) []FieldError {
	var errs []FieldError

	if cfg.Interval <= 0 {
		errs = append(errs, FieldError{"simulation.interval", "must be positive"})
	}
	if cfg.MinBatch < 1 {
		errs = append(errs, FieldError{"simulation.min_batch", "must be at least 1"})
	}
	if cfg.MaxBatch < cfg.MinBatch {
		errs = append(errs, FieldError{"simulation.max_batch", fmt.Sprintf("must be >= min_batch (%d)", cfg.MinBatch)})
	}
	if cfg.SpeedStdDev < 0 {
		errs = append(errs, FieldError{"simulation.speed_stddev", "must be non-negative"})
	}
	if cfg.SpeedMin < 0 || cfg.SpeedMax <= cfg.SpeedMin {
		errs = append(errs, FieldError{"simulation.speed_max", fmt.Sprintf("must be greater than speed_min (%v)", cfg.SpeedMin)})
	}

	total := 0.0
	for name, w := range cfg.TypeWeights {
		if w < 0 {
			errs = append(errs, FieldError{"simulation.type_weights." + name, "must be non-negative"})
		}
		total += w
	}
	if total <= 0 {
		errs = append(errs, FieldError{"simulation.type_weights", "at least one type needs a positive weight"})
	}

	for field, ratio := range map[string]float64{
		"simulation.stnk_active_ratio": cfg.STNKActiveRatio,
		"simulation.sim_active_ratio":  cfg.SIMActiveRatio,
		"simulation.repeat_ratio":      cfg.RepeatRatio,
	} {
		if ratio < 0 || ratio > 1 {
			errs = append(errs, FieldError{field, "must be between 0 and 1"})
		}
	}

	return sortErrors(errs)
}

func validatePipeline(cfg *PipelineConfig) []FieldError {
	var errs []FieldError

	if cfg.Workers < 1 {
		errs = append(errs, FieldError{"pipeline.workers", "must be at least 1"})
	}
	if cfg.QueueCapacity < 1 {
		errs = append(errs, FieldError{"pipeline.queue_capacity", "must be at least 1"})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{"pipeline.shutdown_timeout", "must be positive"})
	}
	if cfg.CheckLatency < 0 {
		errs = append(errs, FieldError{"pipeline.check_latency", "must be non-negative"})
	}
	if cfg.CheckJitter < 0 {
		errs = append(errs, FieldError{"pipeline.check_jitter", "must be non-negative"})
	}
	if cfg.EventBuffer < 1 {
		errs = append(errs, FieldError{"pipeline.event_buffer", "must be at least 1"})
	}

	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	if cfg.MinSpeedLimit < 0 {
		errs = append(errs, FieldError{"rules.min_speed_limit", "must be non-negative"})
	}
	if cfg.SpeedLimit <= cfg.MinSpeedLimit {
		errs = append(errs, FieldError{"rules.speed_limit", fmt.Sprintf("must be greater than min_speed_limit (%v)", cfg.MinSpeedLimit)})
	}
	for name, limit := range cfg.TypeSpeedLimits {
		if limit <= cfg.MinSpeedLimit {
			errs = append(errs, FieldError{"rules.type_speed_limits." + name, fmt.Sprintf("must be greater than min_speed_limit (%v)", cfg.MinSpeedLimit)})
		}
	}
	errs = append(errs, validateBands("rules.low_bands", cfg.LowBands)...)
	errs = append(errs, validateBands("rules.high_bands", cfg.HighBands)...)

	if cfg.STNKPenalty < 0 {
		errs = append(errs, FieldError{"rules.stnk_penalty", "must be non-negative"})
	}
	if cfg.SIMPenalty < 0 {
		errs = append(errs, FieldError{"rules.sim_penalty", "must be non-negative"})
	}
	if cfg.MaxFine <= 0 {
		errs = append(errs, FieldError{"rules.max_fine", "must be positive"})
	}

	return sortErrors(errs)
}

func validateBands(field string, bands []BandConfig) []FieldError {
	var errs []FieldError

	if len(bands) == 0 {
		return []FieldError{{field, "at least one band is required"}}
	}

	sorted := make([]BandConfig, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	seen := make(map[string]bool)
	for i, b := range sorted {
		path := fmt.Sprintf("%s[%s]", field, b.Name)
		if b.Name == "" {
			errs = append(errs, FieldError{field, fmt.Sprintf("band starting at %v has no name", b.Min)})
		} else if seen[b.Name] {
			errs = append(errs, FieldError{path, "duplicate band name"})
		}
		seen[b.Name] = true

		if b.Min < 0 || b.Max < b.Min {
			errs = append(errs, FieldError{path, fmt.Sprintf("invalid range [%v, %v]", b.Min, b.Max)})
		}
		if !(b.Fine > 0) || math.IsInf(b.Fine, 0) {
			errs = append(errs, FieldError{path, "fine must be positive"})
		}
		if i > 0 && b.Min <= sorted[i-1].Max {
			errs = append(errs, FieldError{path, fmt.Sprintf("overlaps band %s", sorted[i-1].Name)})
		}
	}
	return errs
}

func validateTickets(cfg *TicketsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "jsonl":
		if cfg.JSONL.Path == "" {
			errs = append(errs, FieldError{"tickets.jsonl.path", "field is required for jsonl backend"})
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{"tickets.sqlite.path", "field is required for sqlite backend"})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{"tickets.sqlite.max_open_conns", "must be at least 1"})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{"tickets.sqlite.max_idle_conns", "must not exceed max_open_conns"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{"tickets.backend", fmt.Sprintf("unknown backend %q (expected jsonl, sqlite or memory)", cfg.Backend)})
	}

	if cfg.Recorder.AsyncBuffer < 1 {
		errs = append(errs, FieldError{"tickets.recorder.async_buffer", "must be at least 1"})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{"tickets.recorder.write_timeout", "must be positive"})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{"tickets.retention.days", "must be non-negative"})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{"tickets.retention.max_records", "must be non-negative"})
	}
	if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
		errs = append(errs, FieldError{"tickets.retention.schedule", fmt.Sprintf("invalid cron expression: %v", err)})
	}
	if cfg.Retention.ArchiveBeforeDelete && cfg.Retention.ArchivePath == "" {
		errs = append(errs, FieldError{"tickets.retention.archive_path", "field is required when archive_before_delete is set"})
	}

	return errs
}

func validateStats(cfg *StatsConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if cfg.Path == "" {
		errs = append(errs, FieldError{"stats.path", "field is required"})
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{"stats.schedule", fmt.Sprintf("invalid cron expression: %v", err)})
	}
	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{"server.listen_address", fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err)})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{"server.shutdown_timeout", "must be positive"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "must start with /"})
	}
	if !sort.Float64sAreSorted(cfg.Metrics.CheckDurationBuckets) {
		errs = append(errs, FieldError{"telemetry.metrics.check_duration_buckets", "must be sorted in increasing order"})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{"telemetry.tracing.endpoint", "field is required when tracing is enabled"})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{"telemetry.tracing.sample_ratio", "must be between 0 and 1"})
		}
	}

	return errs
}

// sortErrors orders errors by field so map iteration does not change the output.
func sortErrors(errs []FieldError) []FieldError {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}
