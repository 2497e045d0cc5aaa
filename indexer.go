package delimtext

import (
	"math"
	"strings"

	"github.com/nao1215/delimtext/domain/model"
)

// ExtendRecordMap appends record spans to spans until it holds targetRecordCount
// records or src is exhausted. It resumes after the last span, so repeated calls
// with growing targets build the same map as one call with the largest target.
//
// A line with an odd number of double quotes opens a record spanning lines; the
// next line with an odd count closes it. Comment lines are skipped and never
// change that state. An empty last line is not a record, and a record still open
// at the end of src ends at the last line.
//
// Counting quotes is a heuristic: a field holding an odd number of literal quotes
// without quoting intent makes the following lines part of the same record.
func ExtendRecordMap(src TextSource, targetRecordCount int, spans *[]model.RecordSpan, commentPrefix string) {
	lineCount := src.LineCount()
	start := 0
	if n := len(*spans); n > 0 {
		start = (*spans)[n-1].EndLine
	}

	recordBegin := -1
	lnum := start
	for ; lnum < lineCount && len(*spans) < targetRecordCount; lnum++ {
		line := src.LineAt(lnum)
		if lnum+1 == lineCount && line == "" {
			break
		}
		if isComment(line, commentPrefix) {
			continue
		}
		unbalanced := strings.Count(line, doubleQuote)%2 == 1
		switch {
		case recordBegin < 0 && !unbalanced:
			*spans = append(*spans, model.NewRecordSpan(lnum, lnum+1))
		case recordBegin < 0:
			recordBegin = lnum
		case unbalanced:
			*spans = append(*spans, model.NewRecordSpan(recordBegin, lnum+1))
			recordBegin = -1
		}
	}

	if recordBegin >= 0 {
		*spans = append(*spans, model.NewRecordSpan(recordBegin, lnum))
	}
}

// RecordText joins the physical lines of span with "\n".
func RecordText(src TextSource, span model.RecordSpan) string {
	if span.LineCount() == 1 {
		return src.LineAt(span.StartLine)
	}
	lines := make([]string, 0, span.LineCount())
	for i := span.StartLine; i < span.EndLine; i++ {
		lines = append(lines, src.LineAt(i))
	}
	return strings.Join(lines, "\n")
}

// RecordSpans returns the span of every record in src. Under an RFC dialect it
// runs ExtendRecordMap over the whole source; otherwise each non-comment line is
// one record.
func RecordSpans(src TextSource, d model.Dialect, commentPrefix string) []model.RecordSpan {
	var spans []model.RecordSpan
	if d.IsRFC() {
		ExtendRecordMap(src, math.MaxInt, &spans, commentPrefix)
		return spans
	}

	lineCount := src.LineCount()
	for i := 0; i < lineCount; i++ {
		line := src.LineAt(i)
		if i+1 == lineCount && line == "" {
			break
		}
		if isComment(line, commentPrefix) {
			continue
		}
		spans = append(spans, model.NewRecordSpan(i, i+1))
	}
	return spans
}

// ReadRecords decodes every record of src. Records whose quotes are inconsistent
// are still returned, decoded leniently, and also reported in quoteErrs.
func ReadRecords(src TextSource, d model.Dialect, commentPrefix string) (records []model.Record, quoteErrs []*model.QuoteError) {
	spans := RecordSpans(src, d, commentPrefix)
	records = make([]model.Record, 0, len(spans))
	for i, span := range spans {
		fields, quoteWarning := Split(RecordText(src, span), d, false)
		if quoteWarning {
			quoteErrs = append(quoteErrs, &model.QuoteError{Record: i + 1, Line: span.StartLine + 1})
		}
		records = append(records, model.NewRecord(fields))
	}
	return records, quoteErrs
}
