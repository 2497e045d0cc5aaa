// Package model provides domain model for delimtext
package model

// Header is the first record of a file when it is treated as column names.
type Header []string

// NewHeader create new Header.
func NewHeader(h []string) Header {
	return Header(h)
}

// Equal compare Header.
func (h Header) Equal(h2 Header) bool {
	return Record(h).Equal(Record(h2))
}

// Record is an ordered sequence of decoded fields.
type Record []string

// NewRecord create new Record.
func NewRecord(r []string) Record {
	return Record(r)
}

// Equal compare Record.
func (r Record) Equal(r2 Record) bool {
	if len(r) != len(r2) {
		return false
	}
	for i, v := range r {
		if v != r2[i] {
			return false
		}
	}
	return true
}

// RecordSpan identifies the physical lines composing one logical record.
// EndLine is exclusive.
type RecordSpan struct {
	StartLine int
	EndLine   int
}

// NewRecordSpan create new RecordSpan.
func NewRecordSpan(start, end int) RecordSpan {
	return RecordSpan{StartLine: start, EndLine: end}
}

// LineCount returns the number of physical lines in the span.
func (s RecordSpan) LineCount() int {
	return s.EndLine - s.StartLine
}

// ColumnType represents the SQL column type
type ColumnType int

const (
	// ColumnTypeText represents TEXT column type
	ColumnTypeText ColumnType = iota
	// ColumnTypeInteger represents INTEGER column type
	ColumnTypeInteger
	// ColumnTypeReal represents REAL column type
	ColumnTypeReal
	// ColumnTypeDatetime represents datetime stored as TEXT in ISO8601 format
	ColumnTypeDatetime
)

// String returns the column type name
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeInteger:
		return "INTEGER"
	case ColumnTypeReal:
		return "REAL"
	case ColumnTypeDatetime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

// ColumnInfo represents column information with name and inferred type
type ColumnInfo struct {
	Name string
	Type ColumnType
}
