// Package config provides configuration management for tollgate.
//
// This package handles loading, validating, and defaulting configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("tollgate.yaml")
//
//  2. From a YAML file (or no file) with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("tollgate.yaml")
//
// The file is decoded on top of DefaultConfig. Absent fields keep their
// default, lists such as fine bands replace the default list, and maps such
// as type_speed_limits are merged with the default entries.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TOLLGATE_SECTION_FIELD.
// For example:
//
//   - TOLLGATE_PIPELINE_WORKERS overrides pipeline.workers
//   - TOLLGATE_RULES_SPEED_LIMIT overrides rules.speed_limit
//   - TOLLGATE_RULES_TYPE_SPEED_LIMITS_BUS overrides rules.type_speed_limits.bus
//   - TOLLGATE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Malformed override values are reported as validation errors.
//
// # Validation
//
// All configuration is validated during loading. Errors carry field paths:
//
//	configuration validation failed with 2 errors:
//	  - pipeline.workers: must be at least 1
//	  - rules.speed_limit: must be greater than min_speed_limit (60)
//
// # Example Configuration
//
//	simulation:
//	  interval: 3s
//	  min_batch: 10
//	  max_batch: 15
//
//	pipeline:
//	  workers: 5
//	  shutdown_timeout: 10s
//
//	rules:
//	  min_speed_limit: 60
//	  speed_limit: 100
//	  type_speed_limits:
//	    truck: 80
//	  max_fine: 100
//
//	tickets:
//	  backend: "jsonl"
//	  jsonl:
//	    path: "data/tickets.jsonl"
package config
