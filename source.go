package delimtext

import (
	"fmt"
	"io"
	"strings"
)

// TextSource is line-oriented read access to a document. Line numbers are 0-based.
// A document ending with a newline has a trailing empty line.
type TextSource interface {
	// LineCount returns the number of lines
	LineCount() int
	// LineAt returns the text of line n without its terminator
	LineAt(n int) string
	// FullText returns the whole document joined with "\n"
	FullText() string
}

// LineSource is an in-memory TextSource.
type LineSource struct {
	lines []string
}

// NewLineSource creates a LineSource over lines. The slice is not copied.
func NewLineSource(lines []string) *LineSource {
	return &LineSource{lines: lines}
}

// NewStringSource splits text on "\n" and drops a "\r" preceding each newline.
func NewStringSource(text string) *LineSource {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return &LineSource{lines: lines}
}

// LineCount implements TextSource
func (s *LineSource) LineCount() int {
	return len(s.lines)
}

// LineAt implements TextSource. Out of range lines are empty.
func (s *LineSource) LineAt(n int) string {
	if n < 0 || n >= len(s.lines) {
		return ""
	}
	return s.lines[n]
}

// FullText implements TextSource
func (s *LineSource) FullText() string {
	return strings.Join(s.lines, "\n")
}

// headText returns at least the first limit bytes of src (or all of it) without
// materializing the rest of the document.
func headText(src TextSource, limit int) string {
	var b strings.Builder
	for i := 0; i < src.LineCount() && b.Len() < limit; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(src.LineAt(i))
	}
	s := b.String()
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}

// OpenTextReader opens path for reading, decompressing by file extension and
// decoding from the named encoding to UTF-8.
func OpenTextReader(path, encoding string) (io.Reader, func() error, error) {
	rc, err := OpenCompressed(path)
	if err != nil {
		return nil, nil, err
	}
	decoded, err := newDecodingReader(rc, encoding)
	if err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	return decoded, rc.Close, nil
}

// CreateTextWriter creates path for writing, encoding UTF-8 text into the named
// encoding and compressing by file extension. The returned cleanup must be called
// to flush the file.
func CreateTextWriter(path, encoding string) (io.Writer, func() error, error) {
	if _, err := NormalizeEncoding(encoding); err != nil {
		return nil, nil, err
	}
	wc, err := CreateCompressed(path)
	if err != nil {
		return nil, nil, err
	}
	encoded, flush, err := newEncodingWriter(wc, encoding)
	if err != nil {
		_ = wc.Close()
		return nil, nil, err
	}
	return encoded, func() error {
		flushErr := flush()
		if closeErr := wc.Close(); closeErr != nil && flushErr == nil {
			flushErr = closeErr
		}
		return flushErr
	}, nil
}

// LoadFile reads a whole document into a LineSource.
func LoadFile(path, encoding string) (*LineSource, error) {
	reader, closer, err := OpenTextReader(path, encoding)
	if err != nil {
		return nil, NewErrorContext("load", path).Error(err)
	}
	defer closer() //nolint:errcheck // read-only

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewErrorContext("load", path).WithDetails("read").Error(err)
	}
	return NewStringSource(string(data)), nil
}

// String describes the source size, for logging.
func (s *LineSource) String() string {
	return fmt.Sprintf("LineSource(%d lines)", len(s.lines))
}
