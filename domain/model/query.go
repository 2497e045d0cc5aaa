package model

import (
	"errors"
	"fmt"
	"strings"
)

// OutputFormat represents the output file format of a query result
type OutputFormat int

const (
	// OutputSameAsInput writes the result with the input dialect
	OutputSameAsInput OutputFormat = iota
	// OutputCSV writes comma separated values with RFC quoting
	OutputCSV
	// OutputTSV writes tab separated values without quoting
	OutputTSV
	// OutputParquet writes an Apache Parquet file
	OutputParquet
	// OutputXLSX writes an Excel workbook
	OutputXLSX
)

// String returns the string representation of OutputFormat
func (f OutputFormat) String() string {
	switch f {
	case OutputCSV:
		return "csv"
	case OutputTSV:
		return "tsv"
	case OutputParquet:
		return "parquet"
	case OutputXLSX:
		return "xlsx"
	default:
		return "input"
	}
}

// Extension returns the file extension for the format. OutputSameAsInput has none.
func (f OutputFormat) Extension() string {
	switch f {
	case OutputCSV:
		return ".csv"
	case OutputTSV:
		return ".tsv"
	case OutputParquet:
		return ".parquet"
	case OutputXLSX:
		return ".xlsx"
	default:
		return ""
	}
}

// IsDelimited reports whether the format is written with a Dialect.
func (f OutputFormat) IsDelimited() bool {
	return f == OutputSameAsInput || f == OutputCSV || f == OutputTSV
}

// ParseOutputFormat parses an output format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "input", "same-as-input":
		return OutputSameAsInput, nil
	case "csv":
		return OutputCSV, nil
	case "tsv":
		return OutputTSV, nil
	case "parquet":
		return OutputParquet, nil
	case "xlsx":
		return OutputXLSX, nil
	default:
		return OutputSameAsInput, fmt.Errorf("unknown output format: %q", s)
	}
}

// QueryResult is the normalized report of a successful query run.
type QueryResult struct {
	// Warnings reported by the backend
	Warnings []string
	// OutputPath is where the result table was written
	OutputPath string
	// OutputDialect is the dialect of the result table for delimited formats
	OutputDialect Dialect
	// OutputFormat is the resolved output format
	OutputFormat OutputFormat
}

// ErrorKind classifies a failed query run.
type ErrorKind int

const (
	// IntegrationError signals a failure invoking or talking to the backend
	IntegrationError ErrorKind = iota
	// EngineError signals a failure reported by the backend itself
	EngineError
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	if k == EngineError {
		return "engine"
	}
	return "integration"
}

// QueryError is the normalized report of a failed query run.
type QueryError struct {
	Kind    ErrorKind
	Message string
}

// NewIntegrationError creates a QueryError of kind IntegrationError.
func NewIntegrationError(msg string) *QueryError {
	return &QueryError{Kind: IntegrationError, Message: msg}
}

// NewEngineError creates a QueryError of kind EngineError.
func NewEngineError(msg string) *QueryError {
	return &QueryError{Kind: EngineError, Message: msg}
}

// Error implements error
func (e *QueryError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// IsIntegrationError reports whether err is a QueryError of kind IntegrationError.
func IsIntegrationError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Kind == IntegrationError
}

// IsEngineError reports whether err is a QueryError of kind EngineError.
func IsEngineError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Kind == EngineError
}
