package delimtext

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressedRoundTrip(t *testing.T) {
	t.Parallel()

	for _, ext := range []string{"", ".gz", ".xz", ".zst", ".ZST"} {
		t.Run("table.csv"+ext, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "table.csv"+ext)
			w, err := CreateCompressed(path)
			require.NoError(t, err)
			_, err = io.WriteString(w, "id,name\n1,alice\n")
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := OpenCompressed(path)
			require.NoError(t, err)
			defer r.Close() //nolint:errcheck // test cleanup
			data, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "id,name\n1,alice\n", string(data))
		})
	}
}

func TestCreateCompressedReadOnlyFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv.bz2")
	_, err := CreateCompressed(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bz2 compression is not supported for writing")

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "no file is left behind")
}

func TestOpenCompressedErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := OpenCompressed(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bogus := filepath.Join(dir, "bogus.csv.gz")
	require.NoError(t, os.WriteFile(bogus, []byte("not gzip"), 0o600))
	_, err = OpenCompressed(bogus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read gz stream")
}

func TestCompressionOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    CompressionType
		trimmed string
	}{
		{path: "a.csv.GZ", want: CompressionGZ, trimmed: "a.csv"},
		{path: "a.tsv.bz2", want: CompressionBZ2, trimmed: "a.tsv"},
		{path: "a.csv.xz", want: CompressionXZ, trimmed: "a.csv"},
		{path: "Data.CSV.zst", want: CompressionZSTD, trimmed: "Data.CSV"},
		{path: "a.csv", want: CompressionNone, trimmed: "a.csv"},
		{path: "gz", want: CompressionNone, trimmed: "gz"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CompressionOf(tt.path))
			assert.Equal(t, tt.trimmed, TrimCompressionExt(tt.path))
		})
	}
}

func TestCompressionType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		c        CompressionType
		name     string
		ext      string
		writable bool
	}{
		{c: CompressionNone, name: "none", writable: true},
		{c: CompressionGZ, name: "gz", ext: ".gz", writable: true},
		{c: CompressionBZ2, name: "bz2", ext: ".bz2"},
		{c: CompressionXZ, name: "xz", ext: ".xz", writable: true},
		{c: CompressionZSTD, name: "zstd", ext: ".zst", writable: true},
		{c: CompressionType(42), name: "none"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.c.String())
		assert.Equal(t, tt.ext, tt.c.Extension())
		assert.Equal(t, tt.writable, tt.c.Writable(), tt.name)
	}
}
