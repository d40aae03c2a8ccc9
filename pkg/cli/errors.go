package cli

import (
	"errors"
	"fmt"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/traffic"
)

// Exit codes returned by the tollgate command.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
)

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var validation config.ValidationError
	var cfgErr *traffic.ConfigError
	if errors.As(err, &validation) || errors.As(err, &cfgErr) {
		return ExitConfig
	}
	return ExitFailure
}
