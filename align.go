package delimtext

import (
	"strings"
	"unicode/utf8"

	"github.com/nao1215/delimtext/domain/model"
)

// ColumnWidths returns the widest trimmed field of each column, in runes.
// Comment lines are ignored. A line with inconsistent quotes stops the scan
// and is returned as a *model.QuoteError.
func ColumnWidths(src TextSource, d model.Dialect, commentPrefix string) ([]int, *model.QuoteError) {
	var widths []int
	err := eachRecordLine(src, d, commentPrefix, func(fields []string) {
		for i, f := range fields {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(strings.TrimSpace(f)))
		}
	})
	if err != nil {
		return nil, err
	}
	return widths, nil
}

// Align pads every field but the last of each line so columns line up, with one
// extra space before the next delimiter. It returns the new text and whether
// anything changed. Comment lines are kept as they are.
//
// Under the quoted policies a field that starts with a double quote is trimmed
// but never padded: text after a closing quote would make the line inconsistent.
func Align(src TextSource, d model.Dialect, commentPrefix string) (string, bool, *model.QuoteError) {
	widths, quoteErr := ColumnWidths(src, d, commentPrefix)
	if quoteErr != nil {
		return "", false, quoteErr
	}
	return rewriteFields(src, d, commentPrefix, func(fields []string) {
		for i := 0; i < len(fields)-1 && i < len(widths); i++ {
			trimmed := strings.TrimSpace(fields[i])
			if d.Policy.IsQuoted() && strings.HasPrefix(trimmed, doubleQuote) {
				fields[i] = trimmed
				continue
			}
			fields[i] = trimmed + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(trimmed)+1)
		}
	})
}

// Shrink removes leading and trailing spaces from every field, undoing Align.
// It returns the new text and whether anything changed.
func Shrink(src TextSource, d model.Dialect, commentPrefix string) (string, bool, *model.QuoteError) {
	if _, quoteErr := ColumnWidths(src, d, commentPrefix); quoteErr != nil {
		return "", false, quoteErr
	}
	return rewriteFields(src, d, commentPrefix, func(fields []string) {
		for i, f := range fields {
			fields[i] = strings.TrimSpace(f)
		}
	})
}

// eachRecordLine splits every non-comment line with quotes preserved.
func eachRecordLine(src TextSource, d model.Dialect, commentPrefix string, fn func(fields []string)) *model.QuoteError {
	record := 0
	for i := 0; i < src.LineCount(); i++ {
		line := src.LineAt(i)
		if isComment(line, commentPrefix) {
			continue
		}
		record++
		fields, quoteWarning := Split(line, d, true)
		if quoteWarning {
			return &model.QuoteError{Record: record, Line: i + 1}
		}
		fn(fields)
	}
	return nil
}

func rewriteFields(src TextSource, d model.Dialect, commentPrefix string, edit func(fields []string)) (string, bool, *model.QuoteError) {
	lines := make([]string, 0, src.LineCount())
	changed := false
	for i := 0; i < src.LineCount(); i++ {
		line := src.LineAt(i)
		if isComment(line, commentPrefix) {
			lines = append(lines, line)
			continue
		}
		fields, _ := Split(line, d, true)
		edit(fields)
		rewritten := strings.Join(fields, d.Delimiter)
		if rewritten != line {
			changed = true
		}
		lines = append(lines, rewritten)
	}
	if !changed {
		return "", false, nil
	}
	return strings.Join(lines, "\n"), true, nil
}
