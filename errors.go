package delimtext

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedEncoding indicates an unknown text encoding name
	ErrUnsupportedEncoding = errors.New("delimtext: unsupported encoding")

	// ErrSampleInFlight indicates a preview sample is already running on the same context
	ErrSampleInFlight = errors.New("delimtext: preview sample already in progress")

	// ErrNoSource indicates a result table has no recorded source table
	ErrNoSource = errors.New("delimtext: no source table for result")

	// ErrBackendNotConfigured indicates the requested backend has no engine or command
	ErrBackendNotConfigured = errors.New("delimtext: backend not configured")

	// ErrInvalidConfig indicates an invalid session configuration
	ErrInvalidConfig = errors.New("delimtext: invalid configuration")

	// ErrBinaryResult indicates a Parquet or XLSX result was used where text is required
	ErrBinaryResult = errors.New("delimtext: result is not a text table")
)

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	FilePath  string
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, filePath string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		FilePath:  filePath,
	}
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	parts := []string{fmt.Sprintf("delimtext: %s failed", ec.Operation)}
	if ec.FilePath != "" {
		parts = append(parts, "file: "+ec.FilePath)
	}
	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	msg := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", msg, baseErr)
	}
	return errors.New(msg)
}
