package delimtext

import (
	"path/filepath"
	"strings"

	"github.com/nao1215/delimtext/domain/model"
)

// Detection defaults
const (
	// DefaultMinColumns is the fewest columns a detected dialect may have
	DefaultMinColumns = 2
	// DefaultMinLines is the fewest lines a file needs before it is autodetected
	DefaultMinLines = 10
	// DefaultCommentPrefix is the comment prefix a new SessionBuilder starts with
	DefaultCommentPrefix = "#"
	// frequencySampleSize bounds the text scanned by the frequency fallback
	frequencySampleSize = 10000
)

// DefaultCandidateDelimiters are tried in this priority order when no candidates are configured.
var DefaultCandidateDelimiters = []string{"\t", ",", ";", "|"}

// DetectOptions configures Detect.
type DetectOptions struct {
	// Candidates are tried in priority order. Defaults to DefaultCandidateDelimiters.
	Candidates []string
	// MinColumns defaults to DefaultMinColumns.
	MinColumns int
	// MinLines defaults to DefaultMinLines.
	MinLines int
	// CommentPrefix marks lines skipped by detection. Empty disables comments.
	CommentPrefix string
}

func (o DetectOptions) withDefaults() DetectOptions {
	if len(o.Candidates) == 0 {
		o.Candidates = DefaultCandidateDelimiters
	}
	if o.MinColumns <= 0 {
		o.MinColumns = DefaultMinColumns
	}
	if o.MinLines <= 0 {
		o.MinLines = DefaultMinLines
	}
	return o
}

// Detect infers the dialect of src from its structure. Every non-comment line is
// split with the quoted policy for each candidate delimiter; a candidate survives
// when no line has inconsistent quotes, every line has the same number of fields,
// that number is at least MinColumns, and at least MinLines lines were checked.
// The surviving candidate with the most columns wins; on a tie the earlier
// candidate is kept.
//
// Files with fewer than MinLines lines are never detected.
func Detect(src TextSource, opts DetectOptions) (model.Dialect, bool) {
	opts = opts.withDefaults()
	if src.LineCount() < opts.MinLines {
		return model.Dialect{}, false
	}

	best, bestColumns := "", 0
	for _, delim := range opts.Candidates {
		if delim == "" {
			continue
		}
		columns, ok := consistentColumns(src, delim, opts)
		if ok && columns > bestColumns {
			best, bestColumns = delim, columns
		}
	}
	if best == "" {
		return model.Dialect{}, false
	}
	return model.NewDialect(best, DefaultPolicyFor(best)), true
}

func consistentColumns(src TextSource, delim string, opts DetectOptions) (int, bool) {
	columns, checked := 0, 0
	lineCount := src.LineCount()
	for i := 0; i < lineCount; i++ {
		line := src.LineAt(i)
		if i == lineCount-1 && line == "" {
			break
		}
		if isComment(line, opts.CommentPrefix) {
			continue
		}
		fields, quoteWarning := SplitWith(line, delim, model.PolicyQuoted, true)
		if quoteWarning || len(fields) < opts.MinColumns {
			return 0, false
		}
		if checked > 0 && len(fields) != columns {
			return 0, false
		}
		columns = len(fields)
		checked++
	}
	if checked < opts.MinLines {
		return 0, false
	}
	return columns, true
}

// DetectByFrequency picks the candidate occurring most often in the first
// 10 000 bytes of text. Space and "." are never picked since they are common in
// prose. Ties favor ",". It reports false when no candidate occurs at all.
func DetectByFrequency(text string, candidates []string) (model.Dialect, bool) {
	if len(candidates) == 0 {
		candidates = DefaultCandidateDelimiters
	}
	if len(text) > frequencySampleSize {
		text = text[:frequencySampleSize]
	}

	best, bestCount := "", 0
	for _, delim := range candidates {
		if delim == "" || delim == " " || delim == "." {
			continue
		}
		n := strings.Count(text, delim)
		if n > bestCount || (n > 0 && n == bestCount && delim == ",") {
			best, bestCount = delim, n
		}
	}
	if best == "" {
		return model.Dialect{}, false
	}
	return model.NewDialect(best, DefaultPolicyFor(best)), true
}

// DetectDialect runs Detect and, when it finds nothing and the file extension
// mandates a dialect, falls back to DetectByFrequency.
func DetectDialect(path string, src TextSource, opts DetectOptions) (model.Dialect, bool) {
	opts = opts.withDefaults()
	if d, ok := Detect(src, opts); ok {
		return d, true
	}
	if _, mandated := DialectForExtension(path); !mandated || src.LineCount() < opts.MinLines {
		return model.Dialect{}, false
	}
	return DetectByFrequency(headText(src, frequencySampleSize), opts.Candidates)
}

// DefaultPolicyFor returns the quoting policy a delimiter is used with:
// quoted for "," and ";", whitespace for " ", simple otherwise.
func DefaultPolicyFor(delim string) model.QuotingPolicy {
	switch delim {
	case ",", ";":
		return model.PolicyQuoted
	case " ":
		return model.PolicyWhitespace
	default:
		return model.PolicySimple
	}
}

// DialectForExtension returns the dialect mandated by the file extension, if any.
// Compression extensions are ignored.
func DialectForExtension(path string) (model.Dialect, bool) {
	base := TrimCompressionExt(path)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv":
		return model.NewDialect(",", model.PolicyQuoted), true
	case ".tsv":
		return model.NewDialect("\t", model.PolicySimple), true
	default:
		return model.Dialect{}, false
	}
}

func isComment(line, prefix string) bool {
	return prefix != "" && strings.HasPrefix(line, prefix)
}
