package cursor

import (
	"errors"
	"fmt"
)

// ErrNoResult is returned when the CLI exits without emitting a result record.
var ErrNoResult = errors.New("process exited without a result record")

// CLINotFoundError is returned when the CLI binary cannot be found.
type CLINotFoundError struct {
	Cause error
	Path  string
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("cursor CLI not found at %q: %v", e.Path, e.Cause)
}

func (e *CLINotFoundError) Unwrap() error {
	return e.Cause
}

// ProcessError represents an error with the CLI subprocess. Stderr carries
// the collected standard-error text (control sequences stripped) as
// diagnostic context.
type ProcessError struct {
	Cause    error
	Message  string
	Stderr   string
	ExitCode int
}

func (e *ProcessError) Error() string {
	msg := e.Message
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s\nstderr: %s", msg, e.Stderr)
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// ProtocolError represents a protocol-level error (e.g. a line that is not
// valid JSON). A protocol error is fatal to the run that produced it.
type ProtocolError struct {
	Cause   error
	Message string
	Line    string
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}
