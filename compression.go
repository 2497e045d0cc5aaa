package delimtext

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// CompressionType is the compression of a table file, chosen by its extension.
type CompressionType int

const (
	// CompressionNone is a plain file
	CompressionNone CompressionType = iota
	// CompressionGZ is gzip (.gz)
	CompressionGZ
	// CompressionBZ2 is bzip2 (.bz2). Sources only.
	CompressionBZ2
	// CompressionXZ is xz (.xz)
	CompressionXZ
	// CompressionZSTD is zstd (.zst)
	CompressionZSTD
)

// codec pairs a compression with its extension and stream constructors.
type codec struct {
	name string
	ext  string
	open func(io.Reader) (io.ReadCloser, error)
	// create is nil for formats that are only read
	create func(io.Writer) (io.WriteCloser, error)
}

// compressed lists the codecs tried by extension, in match order.
var compressed = []CompressionType{CompressionGZ, CompressionBZ2, CompressionXZ, CompressionZSTD}

var codecs = map[CompressionType]codec{
	CompressionNone: {
		name: "none",
		open: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
		create: func(w io.Writer) (io.WriteCloser, error) {
			return nopWriteCloser{w}, nil
		},
	},
	CompressionGZ: {
		name: "gz",
		ext:  ".gz",
		open: func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
		create: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		},
	},
	CompressionBZ2: {
		name: "bz2",
		ext:  ".bz2",
		open: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(bzip2.NewReader(r)), nil },
	},
	CompressionXZ: {
		name: "xz",
		ext:  ".xz",
		open: func(r io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		},
		create: func(w io.Writer) (io.WriteCloser, error) { return xz.NewWriter(w) },
	},
	CompressionZSTD: {
		name: "zstd",
		ext:  ".zst",
		open: func(r io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		},
		create: func(w io.Writer) (io.WriteCloser, error) { return zstd.NewWriter(w) },
	},
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// String returns the short name of the compression
func (c CompressionType) String() string {
	if k, ok := codecs[c]; ok {
		return k.name
	}
	return "none"
}

// Extension returns the file extension including the dot, empty for CompressionNone.
func (c CompressionType) Extension() string {
	return codecs[c].ext
}

// Writable reports whether results can be written with this compression.
func (c CompressionType) Writable() bool {
	k, ok := codecs[c]
	return ok && k.create != nil
}

// CompressionOf returns the compression implied by the extension of path.
// Extensions match case-insensitively.
func CompressionOf(path string) CompressionType {
	lower := strings.ToLower(path)
	for _, c := range compressed {
		if strings.HasSuffix(lower, codecs[c].ext) {
			return c
		}
	}
	return CompressionNone
}

// TrimCompressionExt removes a compression extension from path, keeping the
// case of the rest. "Data.CSV.GZ" becomes "Data.CSV".
func TrimCompressionExt(path string) string {
	return path[:len(path)-len(CompressionOf(path).Extension())]
}

// compressedFile closes the codec stream before the file under it.
type compressedFile struct {
	stream io.Closer
	file   *os.File
	sync   bool
}

func (f *compressedFile) Close() error {
	err := f.stream.Close()
	if f.sync {
		if syncErr := f.file.Sync(); syncErr != nil && err == nil {
			err = syncErr
		}
	}
	if closeErr := f.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// OpenCompressed opens path for reading, decompressing by its extension.
func OpenCompressed(path string) (io.ReadCloser, error) {
	c := CompressionOf(path)
	file, err := os.Open(path) //nolint:gosec // table paths come from the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stream, err := codecs[c].open(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read %s stream: %w", c, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{stream, &compressedFile{stream: stream, file: file}}, nil
}

// CreateCompressed creates path for writing, compressing by its extension. The
// file is not created when the compression cannot be written. Close flushes the
// stream and syncs the file.
func CreateCompressed(path string) (io.WriteCloser, error) {
	c := CompressionOf(path)
	if !c.Writable() {
		return nil, fmt.Errorf("%s compression is not supported for writing", c)
	}
	file, err := os.Create(path) //nolint:gosec // table paths come from the caller
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	stream, err := codecs[c].create(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write %s stream: %w", c, err)
	}
	return struct {
		io.Writer
		io.Closer
	}{stream, &compressedFile{stream: stream, file: file, sync: true}}, nil
}
