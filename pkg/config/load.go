package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TOLLGATE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of DefaultConfig, remaining zero values are
// defaulted, and the result is validated. Environment variables are not
// consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration on top of the defaults without validating it.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TOLLGATE_SECTION_FIELD (e.g., TOLLGATE_PIPELINE_WORKERS).
// An empty path starts from DefaultConfig.
//
// The loading sequence is:
// 1. Load YAML from file (or defaults)
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envOverride binds one environment variable to one configuration field.
type envOverride struct {
	name  string
	apply func(val string) error
}

func stringVar(dst *string) func(string) error {
	return func(val string) error {
		*dst = val
		return nil
	}
}

func intVar(dst *int) func(string) error {
	return func(val string) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*dst = i
		return nil
	}
}

func int64Var(dst *int64) func(string) error {
	return func(val string) error {
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		*dst = i
		return nil
	}
}

func uint64Var(dst *uint64) func(string) error {
	return func(val string) error {
		i, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return err
		}
		*dst = i
		return nil
	}
}

func floatVar(dst *float64) func(string) error {
	return func(val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func boolVar(dst *bool) func(string) error {
	return func(val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func durationVar(dst *time.Duration) func(string) error {
	return func(val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// A malformed value is reported rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	overrides := []envOverride{
		// Simulation overrides
		{"SIMULATION_ENABLED", boolVar(&cfg.Simulation.Enabled)},
		{"SIMULATION_INTERVAL", durationVar(&cfg.Simulation.Interval)},
		{"SIMULATION_MIN_BATCH", intVar(&cfg.Simulation.MinBatch)},
		{"SIMULATION_MAX_BATCH", intVar(&cfg.Simulation.MaxBatch)},
		{"SIMULATION_SEED", uint64Var(&cfg.Simulation.Seed)},
		{"SIMULATION_LOCATION", stringVar(&cfg.Simulation.Location)},

		// Pipeline overrides
		{"PIPELINE_WORKERS", intVar(&cfg.Pipeline.Workers)},
		{"PIPELINE_QUEUE_CAPACITY", intVar(&cfg.Pipeline.QueueCapacity)},
		{"PIPELINE_SHUTDOWN_TIMEOUT", durationVar(&cfg.Pipeline.ShutdownTimeout)},
		{"PIPELINE_CHECK_LATENCY", durationVar(&cfg.Pipeline.CheckLatency)},
		{"PIPELINE_CHECK_JITTER", durationVar(&cfg.Pipeline.CheckJitter)},

		// Rules overrides
		{"RULES_MIN_SPEED_LIMIT", floatVar(&cfg.Rules.MinSpeedLimit)},
		{"RULES_SPEED_LIMIT", floatVar(&cfg.Rules.SpeedLimit)},
		{"RULES_STNK_PENALTY", floatVar(&cfg.Rules.STNKPenalty)},
		{"RULES_SIM_PENALTY", floatVar(&cfg.Rules.SIMPenalty)},
		{"RULES_MAX_FINE", floatVar(&cfg.Rules.MaxFine)},

		// Tickets overrides
		{"TICKETS_BACKEND", stringVar(&cfg.Tickets.Backend)},
		{"TICKETS_JSONL_PATH", stringVar(&cfg.Tickets.JSONL.Path)},
		{"TICKETS_SQLITE_PATH", stringVar(&cfg.Tickets.SQLite.Path)},
		{"TICKETS_RETENTION_DAYS", intVar(&cfg.Tickets.Retention.Days)},
		{"TICKETS_RETENTION_MAX_RECORDS", int64Var(&cfg.Tickets.Retention.MaxRecords)},

		// Stats overrides
		{"STATS_ENABLED", boolVar(&cfg.Stats.Enabled)},
		{"STATS_PATH", stringVar(&cfg.Stats.Path)},
		{"STATS_SCHEDULE", stringVar(&cfg.Stats.Schedule)},

		// Server overrides
		{"SERVER_ENABLED", boolVar(&cfg.Server.Enabled)},
		{"SERVER_LISTEN_ADDRESS", stringVar(&cfg.Server.ListenAddress)},

		// Telemetry overrides
		{"TELEMETRY_LOGGING_LEVEL", stringVar(&cfg.Telemetry.Logging.Level)},
		{"TELEMETRY_LOGGING_FORMAT", stringVar(&cfg.Telemetry.Logging.Format)},
		{"TELEMETRY_METRICS_ENABLED", boolVar(&cfg.Telemetry.Metrics.Enabled)},
		{"TELEMETRY_METRICS_PATH", stringVar(&cfg.Telemetry.Metrics.Path)},
		{"TELEMETRY_TRACING_ENABLED", boolVar(&cfg.Telemetry.Tracing.Enabled)},
		{"TELEMETRY_TRACING_ENDPOINT", stringVar(&cfg.Telemetry.Tracing.Endpoint)},
		{"TELEMETRY_TRACING_SAMPLE_RATIO", floatVar(&cfg.Telemetry.Tracing.SampleRatio)},
	}

	var errs []FieldError
	for _, o := range overrides {
		name := EnvPrefix + o.name
		val, ok := os.LookupEnv(name)
		if !ok || val == "" {
			continue
		}
		if err := o.apply(val); err != nil {
			errs = append(errs, FieldError{
				Field:   name,
				Message: fmt.Sprintf("invalid value %q: %v", val, err),
			})
		}
	}

	// Per-type limits: TOLLGATE_RULES_TYPE_SPEED_LIMITS_<TYPE>=<km/h>
	typePrefix := EnvPrefix + "RULES_TYPE_SPEED_LIMITS_"
	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, typePrefix) {
			continue
		}
		vt := strings.ToLower(strings.TrimPrefix(name, typePrefix))
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("invalid value %q: %v", val, err)})
			continue
		}
		if cfg.Rules.TypeSpeedLimits == nil {
			cfg.Rules.TypeSpeedLimits = make(map[string]float64)
		}
		cfg.Rules.TypeSpeedLimits[vt] = f
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
