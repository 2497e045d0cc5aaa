package engine

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/delimtext"
	"github.com/nao1215/delimtext/domain/model"
)

// table is an input file decoded into rectangular records.
type table struct {
	// name is the table name derived from the file path
	name string
	// columns are the column names and inferred types
	columns []model.ColumnInfo
	// records all have len(columns) fields
	records []model.Record
	// header is the header record when the file has one
	header model.Header
}

// loadTable reads path under dialect d. The returned warnings describe input
// problems that did not stop the load.
func loadTable(path, encoding string, d model.Dialect, skipHeaders bool, commentPrefix string) (*table, []string, error) {
	src, err := delimtext.LoadFile(path, encoding)
	if err != nil {
		return nil, nil, newError(ErrorTypeIO, err)
	}

	records, quoteErrs := delimtext.ReadRecords(src, d, commentPrefix)
	var warnings []string
	if len(quoteErrs) > 0 {
		warnings = append(warnings, fmt.Sprintf("Inconsistent double quote escaping in input table: %v", quoteErrs[0]))
	}
	if w, ok := fieldCountWarning(records); ok {
		warnings = append(warnings, w)
	}

	var header model.Header
	if skipHeaders {
		if len(records) == 0 {
			return nil, nil, newError(ErrorTypeInput, ErrEmptyInput)
		}
		header = model.NewHeader(records[0])
		records = records[1:]
	}

	width := max(len(header), 1)
	for _, r := range records {
		width = max(width, len(r))
	}
	names, err := columnNames(header, width)
	if err != nil {
		return nil, nil, newError(ErrorTypeInput, err)
	}
	for i, r := range records {
		records[i] = padRecord(r, width)
	}

	return &table{
		name:    tableFromFilePath(path),
		columns: inferColumnsInfo(names, records),
		records: records,
		header:  header,
	}, warnings, nil
}

// fieldCountWarning describes the first record whose field count differs from the first record.
func fieldCountWarning(records []model.Record) (string, bool) {
	if len(records) == 0 {
		return "", false
	}
	expected := len(records[0])
	for i, r := range records[1:] {
		if len(r) != expected {
			return fmt.Sprintf("Number of fields in input table is not consistent: e.g. record 1 has %d fields, record %d has %d fields",
				expected, i+2, len(r)), true
		}
	}
	return "", false
}

// columnNames names width columns: header fields where present, a1..aN otherwise.
// Names are compared case-insensitively, as SQL identifiers are.
func columnNames(header model.Header, width int) ([]string, error) {
	names := make([]string, width)
	seen := make(map[string]struct{}, width)
	for i := range names {
		name := "a" + strconv.Itoa(i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = header[i]
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s", model.ErrDuplicateColumnName, name)
		}
		seen[key] = struct{}{}
		names[i] = name
	}
	return names, nil
}

func padRecord(r model.Record, width int) model.Record {
	if len(r) == width {
		return r
	}
	padded := make(model.Record, width)
	copy(padded, r)
	return padded
}

// tableFromFilePath creates table name from file path
func tableFromFilePath(filePath string) string {
	fileName := delimtext.TrimCompressionExt(filepath.Base(filePath))
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
