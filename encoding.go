package delimtext

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Supported text encodings of source and result files
const (
	// EncodingUTF8 is the default. A leading byte order mark is dropped on read.
	EncodingUTF8 = "utf-8"
	// EncodingLatin1 is ISO-8859-1
	EncodingLatin1 = "latin-1"
	// EncodingWindows1252 is the Windows western european code page
	EncodingWindows1252 = "windows-1252"
)

// NormalizeEncoding maps accepted spellings of an encoding name to one of the
// Encoding constants. An empty name is EncodingUTF8.
func NormalizeEncoding(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-bom":
		return EncodingUTF8, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1, nil
	case "windows-1252", "cp1252":
		return EncodingWindows1252, nil
	default:
		return "", fmt.Errorf("%w: encoding %q", ErrUnsupportedEncoding, name)
	}
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	normalized, err := NormalizeEncoding(name)
	if err != nil {
		return nil, err
	}
	switch normalized {
	case EncodingLatin1:
		return charmap.ISO8859_1, nil
	case EncodingWindows1252:
		return charmap.Windows1252, nil
	default:
		return unicode.UTF8BOM, nil
	}
}

// newDecodingReader converts r from the named encoding to UTF-8.
func newDecodingReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// newEncodingWriter converts UTF-8 written to the returned writer into the named
// encoding. UTF-8 output is passed through without a byte order mark.
func newEncodingWriter(w io.Writer, name string) (io.Writer, func() error, error) {
	normalized, err := NormalizeEncoding(name)
	if err != nil {
		return nil, nil, err
	}
	if normalized == EncodingUTF8 {
		return w, noopCleanup, nil
	}
	enc, err := lookupEncoding(normalized)
	if err != nil {
		return nil, nil, err
	}
	tw := transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder()))
	return tw, tw.Close, nil
}

// noopCleanup is the cleanup returned when no flushing is required.
func noopCleanup() error { return nil }
