package traffic

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports an invalid rule or pipeline setting. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration [field=%s]: %s", e.Field, e.Reason)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

// EvaluationError reports a failed check for a single vehicle.
// The vehicle is dropped and its worker slot released.
type EvaluationError struct {
	VehicleID string
	Worker    int
	Cause     error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error [vehicle_id=%s, worker=%d]: %v", e.VehicleID, e.Worker, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// NewEvaluationError creates a new EvaluationError.
func NewEvaluationError(vehicleID string, worker int, cause error) *EvaluationError {
	return &EvaluationError{
		VehicleID: vehicleID,
		Worker:    worker,
		Cause:     cause,
	}
}

// FlushError collects the failures of the final flush at shutdown.
type FlushError struct {
	Errs []error
}

// Error implements the error interface.
func (e *FlushError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("flush failed with %d errors: %s", len(e.Errs), strings.Join(msgs, "; "))
}

// Unwrap returns the collected errors.
func (e *FlushError) Unwrap() []error {
	return e.Errs
}

// ErrStopped is returned when work is submitted to a stopped component.
var ErrStopped = errors.New("pipeline stopped")
