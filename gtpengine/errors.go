package gtpengine

import (
	"errors"
	"fmt"
)

// Sentinel errors for the command protocol.
var (
	// ErrEmptyCommand indicates a line that holds no tokens was parsed.
	ErrEmptyCommand = errors.New("empty command line")

	// ErrNotConnected indicates a client operation after Close.
	ErrNotConnected = errors.New("not connected")

	// ErrUnknownHandle indicates an embedding handle that was never created
	// or has already been destroyed.
	ErrUnknownHandle = errors.New("unknown engine handle")

	// ErrMalformedResponse indicates a response block that does not start
	// with a status character.
	ErrMalformedResponse = errors.New("malformed response")
)

// FailureKind categorizes command failures.
type FailureKind int

const (
	// FailureHandler is a failure reported by a command handler.
	FailureHandler FailureKind = iota
	// FailureArgument indicates a missing argument, a wrong number of
	// arguments, or an argument of the wrong type or range.
	FailureArgument
	// FailureUnknownCommand indicates a verb without a registered handler.
	FailureUnknownCommand
	// FailureBadCommand indicates a blank or comment line where a command
	// was required.
	FailureBadCommand
	// FailureFile indicates that a command file could not be read or that
	// one of its commands failed.
	FailureFile
)

// String returns the name of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureHandler:
		return "handler"
	case FailureArgument:
		return "argument"
	case FailureUnknownCommand:
		return "unknown command"
	case FailureBadCommand:
		return "bad command"
	case FailureFile:
		return "file"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Failure is the structured error a handler returns to produce a failure
// response. Its message becomes the response text.
type Failure struct {
	Kind    FailureKind
	Message string
	Cause   error
}

// Error implements the error interface. It returns the message only, since
// the message is sent verbatim as the response text.
func (f *Failure) Error() string {
	return f.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Failuref creates a handler failure with a formatted message.
func Failuref(format string, args ...any) error {
	return &Failure{Kind: FailureHandler, Message: fmt.Sprintf(format, args...)}
}

// Helper functions to create specific failures.

func newArgumentError(format string, args ...any) error {
	return &Failure{Kind: FailureArgument, Message: fmt.Sprintf(format, args...)}
}

func newMissingArgumentError(number int) error {
	return newArgumentError("missing argument %d", number)
}

func newArgumentTypeError(number int, value, typeName string) error {
	return newArgumentError("argument %d (%s) must be of type %s", number, value, typeName)
}

func newUnknownCommandError(verb string) error {
	return &Failure{Kind: FailureUnknownCommand, Message: "unknown command: " + verb}
}

func newBadCommandError(line string) error {
	return &Failure{Kind: FailureBadCommand, Message: "bad command: " + line}
}

func newFileError(message string, cause error) error {
	return &Failure{Kind: FailureFile, Message: message, Cause: cause}
}

// IsFailure reports whether err is a *Failure of the given kind.
func IsFailure(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}

// ConnectionError represents a failure talking to an engine process.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}
