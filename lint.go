package delimtext

import (
	"fmt"
	"strings"

	"github.com/nao1215/delimtext/domain/model"
)

// FieldCountMismatch is the first record whose field count differs from the first record.
type FieldCountMismatch struct {
	// Record is the 1-based record number
	Record int
	// Line is the 1-based line where the record starts
	Line int
	// Expected is the field count of the first record
	Expected int
	// Actual is the field count of Record
	Actual int
}

// LintReport summarizes the consistency of a document under a dialect.
type LintReport struct {
	// Records is the number of records checked
	Records int
	// Fields is the field count of the first record
	Fields int
	// QuoteError is the first record with inconsistent quotes
	QuoteError *model.QuoteError
	// FieldCountMismatch is the first record with a different field count
	FieldCountMismatch *FieldCountMismatch
	// SpaceLine is the 1-based line of the first record with a field that starts
	// or ends with a space, 0 if none. It is a hint for Shrink, not an error.
	SpaceLine int
}

// OK reports whether no error was found. SpaceLine does not count.
func (r LintReport) OK() bool {
	return r.QuoteError == nil && r.FieldCountMismatch == nil
}

// String renders the report the way a status line shows it.
func (r LintReport) String() string {
	switch {
	case r.QuoteError != nil:
		return "Error. " + r.QuoteError.Error()
	case r.FieldCountMismatch != nil:
		m := r.FieldCountMismatch
		return fmt.Sprintf("Error. Number of fields is not consistent: record %d at line %d has %d fields, record 1 has %d",
			m.Record, m.Line, m.Actual, m.Expected)
	case r.SpaceLine > 0:
		return fmt.Sprintf("Leading or trailing spaces detected at line %d. Shrink removes them.", r.SpaceLine)
	default:
		return "OK"
	}
}

// Lint checks every record of src. A quote error stops the pass; a field count
// mismatch is recorded once and the pass continues looking for quote errors.
// The first record with a padded field is noted in SpaceLine.
func Lint(src TextSource, d model.Dialect, commentPrefix string) LintReport {
	var report LintReport
	for i, span := range RecordSpans(src, d, commentPrefix) {
		fields, quoteWarning := Split(RecordText(src, span), d, true)
		report.Records++
		if quoteWarning {
			report.QuoteError = &model.QuoteError{Record: i + 1, Line: span.StartLine + 1}
			return report
		}
		if report.SpaceLine == 0 && hasPaddedField(fields) {
			report.SpaceLine = span.StartLine + 1
		}
		if i == 0 {
			report.Fields = len(fields)
			continue
		}
		if report.FieldCountMismatch == nil && len(fields) != report.Fields {
			report.FieldCountMismatch = &FieldCountMismatch{
				Record:   i + 1,
				Line:     span.StartLine + 1,
				Expected: report.Fields,
				Actual:   len(fields),
			}
		}
	}
	return report
}

func hasPaddedField(fields []string) bool {
	for _, f := range fields {
		if strings.HasPrefix(f, " ") || strings.HasSuffix(f, " ") {
			return true
		}
	}
	return false
}
