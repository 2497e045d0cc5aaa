package engine

import (
	"errors"
	"fmt"
)

// Error types reported by the engine. They are also the error_type values of
// the dtquery JSON report.
const (
	// ErrorTypeIO is a failure reading the input or writing the output
	ErrorTypeIO = "IO handling"
	// ErrorTypeInput is an input table the engine cannot load
	ErrorTypeInput = "input table"
	// ErrorTypeQuery is a query the database rejected
	ErrorTypeQuery = "query execution"
	// ErrorTypeOutput is a result that cannot be written in the requested format
	ErrorTypeOutput = "output"
)

var (
	// ErrUnsupportedDriver is returned for an unknown Driver value
	ErrUnsupportedDriver = errors.New("engine: unsupported driver")
	// ErrEmptyInput is returned when a header is required but the input has no records
	ErrEmptyInput = errors.New("engine: input table has no records")
)

// Error is a failure of one phase of Execute.
type Error struct {
	// Type is one of the ErrorType constants
	Type string
	// Err is the underlying error
	Err error
}

func newError(errType string, err error) *Error {
	return &Error{Type: errType, Err: err}
}

// Error implements error
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}
