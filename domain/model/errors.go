// Package model provides domain model for delimtext
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateColumnName is returned when a header contains duplicate column names
	ErrDuplicateColumnName = errors.New("duplicate column name")
	// ErrQuoteInconsistency is returned when double quotes of a record do not balance
	ErrQuoteInconsistency = errors.New("double quotes are not consistent")
)

// QuoteError reports the record whose quotes are inconsistent.
type QuoteError struct {
	// Record is the 1-based record number
	Record int
	// Line is the 1-based line where the record starts
	Line int
}

// Error formats the quote error with the stored record and line numbers.
func (e *QuoteError) Error() string {
	if e.Record == e.Line {
		return fmt.Sprintf("%v in record %d", ErrQuoteInconsistency, e.Record)
	}
	return fmt.Sprintf("%v in record %d which starts at line %d", ErrQuoteInconsistency, e.Record, e.Line)
}

// Unwrap returns ErrQuoteInconsistency so QuoteError participates in errors.Is.
func (e *QuoteError) Unwrap() error {
	return ErrQuoteInconsistency
}
