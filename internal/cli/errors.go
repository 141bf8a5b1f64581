package cli

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// ConfigError is a problem the user can fix: a bad config file, an
// unknown kind, a missing token.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %v", e.Err)
	}
	return fmt.Sprintf("config error in %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CommandError is a failure while a command was doing its work.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// NewConfigError creates a ConfigError.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// NewCommandError creates a CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// exitCode maps an error returned by a command to the process exit code.
// Unclassified errors come from cobra itself (bad flags, wrong argument
// count) and count as user errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return exitSysError
	}
	return exitUserError
}
