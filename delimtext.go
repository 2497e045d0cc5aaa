package delimtext

import "github.com/nao1215/delimtext/domain/model"

// Type aliases for the data model
type (
	// Dialect is a delimiter plus a quoting policy
	Dialect = model.Dialect
	// QuotingPolicy controls how quotes are interpreted
	QuotingPolicy = model.QuotingPolicy
	// Record is an ordered sequence of fields
	Record = model.Record
	// RecordSpan is the half-open line range of one record
	RecordSpan = model.RecordSpan
	// OutputFormat is the format of a query result
	OutputFormat = model.OutputFormat
	// QueryResult is the report of a successful query
	QueryResult = model.QueryResult
	// QueryError is the report of a failed query
	QueryError = model.QueryError
	// QuoteError names a record with inconsistent quotes
	QuoteError = model.QuoteError
)

// Re-export constants for easier use
const (
	// PolicyMonocolumn treats every line as one field
	PolicyMonocolumn = model.PolicyMonocolumn
	// PolicySimple splits on every delimiter
	PolicySimple = model.PolicySimple
	// PolicyQuoted splits with CSV quoting
	PolicyQuoted = model.PolicyQuoted
	// PolicyQuotedRFC splits with CSV quoting across line breaks
	PolicyQuotedRFC = model.PolicyQuotedRFC
	// PolicyWhitespace splits on runs of spaces
	PolicyWhitespace = model.PolicyWhitespace

	// OutputSameAsInput writes results with the input dialect
	OutputSameAsInput = model.OutputSameAsInput
	// OutputCSV writes results as CSV
	OutputCSV = model.OutputCSV
	// OutputTSV writes results as TSV
	OutputTSV = model.OutputTSV
	// OutputParquet writes results as Parquet
	OutputParquet = model.OutputParquet
	// OutputXLSX writes results as an Excel workbook
	OutputXLSX = model.OutputXLSX
)

// NewDialect creates a Dialect. The delimiter of a monocolumn dialect is dropped.
var NewDialect = model.NewDialect

// ErrQuoteInconsistency is wrapped by every QuoteError
var ErrQuoteInconsistency = model.ErrQuoteInconsistency
