package delimtext

import (
	"strings"

	"github.com/nao1215/delimtext/domain/model"
)

const doubleQuote = `"`

// Split splits one record into fields under the given dialect.
//
// The returned quoteWarning is true when the record uses double quotes in a way
// the quoting automaton cannot balance: a quote inside an unquoted field, text
// after a closing quote, or an unterminated quoted field. The split itself is
// lenient and always returns fields. Warnings are only possible under the
// quoted policies.
//
// With preserveQuotes the fields keep their raw text, otherwise enclosing quotes
// are stripped and doubled quotes collapsed for every well-formed quoted field.
func Split(line string, d model.Dialect, preserveQuotes bool) (fields []string, quoteWarning bool) {
	return SplitWith(line, d.Delimiter, d.Policy, preserveQuotes)
}

// SplitWith is Split with the delimiter and policy passed separately.
func SplitWith(line, delim string, policy model.QuotingPolicy, preserveQuotes bool) ([]string, bool) {
	if policy == model.PolicyMonocolumn || delim == "" {
		return []string{line}, false
	}

	switch policy {
	case model.PolicyWhitespace:
		return splitWhitespace(line, delim), false
	case model.PolicyQuoted, model.PolicyQuotedRFC:
		return splitQuoted(line, delim, preserveQuotes)
	default:
		return strings.Split(line, delim), false
	}
}

// splitWhitespace splits on runs of delim, ignoring leading and trailing runs.
func splitWhitespace(line, delim string) []string {
	var fields []string
	rest := line
	for {
		for strings.HasPrefix(rest, delim) {
			rest = rest[len(delim):]
		}
		if rest == "" {
			break
		}
		idx := strings.Index(rest, delim)
		if idx < 0 {
			fields = append(fields, rest)
			break
		}
		fields = append(fields, rest[:idx])
		rest = rest[idx+len(delim):]
	}
	if len(fields) == 0 {
		return []string{""}
	}
	return fields
}

func splitQuoted(line, delim string, preserveQuotes bool) ([]string, bool) {
	if !strings.Contains(line, doubleQuote) {
		return strings.Split(line, delim), false
	}

	var (
		fields  []string
		warning bool
		pos     int
	)
	for {
		raw, end, consistent := scanField(line, pos, delim)
		if !consistent {
			warning = true
		}
		fields = append(fields, decodeField(raw, consistent, preserveQuotes))
		if end >= len(line) {
			break
		}
		pos = end + len(delim)
	}
	return fields, warning
}

// scanField reads the field starting at start. end is the index of the
// delimiter terminating the field, or len(line).
func scanField(line string, start int, delim string) (raw string, end int, consistent bool) {
	if start >= len(line) || line[start] != '"' {
		end = indexFrom(line, start, delim)
		raw = line[start:end]
		return raw, end, !strings.Contains(raw, doubleQuote)
	}

	i := start + 1
	for {
		j := strings.IndexByte(line[i:], '"')
		if j < 0 {
			// unterminated
			return line[start:], len(line), false
		}
		q := i + j
		if q+1 < len(line) && line[q+1] == '"' {
			i = q + 2
			continue
		}
		after := q + 1
		if after == len(line) || strings.HasPrefix(line[after:], delim) {
			return line[start:after], after, true
		}
		// text between the closing quote and the next delimiter
		end = indexFrom(line, after, delim)
		return line[start:end], end, false
	}
}

func indexFrom(s string, from int, sub string) int {
	idx := strings.Index(s[from:], sub)
	if idx < 0 {
		return len(s)
	}
	return from + idx
}

func decodeField(raw string, consistent, preserveQuotes bool) string {
	if preserveQuotes || !consistent || !strings.HasPrefix(raw, doubleQuote) {
		return raw
	}
	return strings.ReplaceAll(raw[1:len(raw)-1], `""`, doubleQuote)
}

// JoinFields renders fields as one record under the dialect.
//
// Under the quoted policies fields containing the delimiter, a double quote or a
// line break are quoted. lossy is true when the output cannot be split back into
// the same fields: a delimiter inside a simple or whitespace field, an empty
// whitespace field, a line break under PolicyQuoted, or several fields under
// PolicyMonocolumn.
func JoinFields(fields []string, d model.Dialect) (line string, lossy bool) {
	switch d.Policy {
	case model.PolicyMonocolumn:
		if len(fields) == 1 {
			return fields[0], false
		}
		return strings.Join(fields, ""), len(fields) > 1
	case model.PolicyQuoted, model.PolicyQuotedRFC:
		out := make([]string, len(fields))
		for i, f := range fields {
			if d.Policy == model.PolicyQuoted && strings.ContainsAny(f, "\r\n") {
				lossy = true
			}
			out[i] = quoteField(f, d.Delimiter)
		}
		return strings.Join(out, d.Delimiter), lossy
	default:
		for _, f := range fields {
			if strings.Contains(f, d.Delimiter) {
				lossy = true
			}
			if d.Policy == model.PolicyWhitespace && f == "" {
				lossy = true
			}
		}
		return strings.Join(fields, d.Delimiter), lossy
	}
}

func quoteField(f, delim string) string {
	if !strings.Contains(f, delim) && !strings.ContainsAny(f, "\"\r\n") {
		return f
	}
	return doubleQuote + strings.ReplaceAll(f, doubleQuote, `""`) + doubleQuote
}
