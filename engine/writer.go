package engine

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"github.com/nao1215/delimtext"
	"github.com/nao1215/delimtext/domain/model"
)

// lossyOutputWarning is reported when a result field cannot be written in the output dialect
const lossyOutputWarning = "Some result set fields contain the output delimiter or line breaks and cannot be read back unchanged"

// xlsxSheet is the sheet results are written to
const xlsxSheet = "Sheet1"

// writeResult writes res in the requested format. The header row is written
// when the input had one.
func writeResult(req delimtext.EngineRequest, res *resultSet) ([]string, error) {
	switch req.OutputFormat {
	case model.OutputParquet:
		return nil, writeParquet(req.OutputPath, res)
	case model.OutputXLSX:
		return nil, writeXLSX(req.OutputPath, res, req.SkipHeaders)
	default:
		return writeDelimited(req.OutputPath, req.Encoding, req.OutputDialect, res, req.SkipHeaders)
	}
}

func writeDelimited(path, encoding string, d model.Dialect, res *resultSet, withHeader bool) ([]string, error) {
	w, closeFn, err := delimtext.CreateTextWriter(path, encoding)
	if err != nil {
		return nil, newError(ErrorTypeIO, err)
	}
	bw := bufio.NewWriter(w)

	lossy := false
	writeLine := func(fields []string) error {
		line, l := delimtext.JoinFields(fields, d)
		lossy = lossy || l
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	}

	err = func() error {
		if withHeader {
			if err := writeLine(res.columns); err != nil {
				return err
			}
		}
		fields := make([]string, len(res.columns))
		for _, row := range res.rows {
			for i, v := range row {
				fields[i] = formatValue(v)
			}
			if err := writeLine(fields); err != nil {
				return err
			}
		}
		return bw.Flush()
	}()
	if closeErr := closeFn(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, newError(ErrorTypeIO, err)
	}

	if lossy {
		return []string{lossyOutputWarning}, nil
	}
	return nil, nil
}

// writeBytes writes data to path, compressing by the file extension.
func writeBytes(path string, data []byte) error {
	w, err := delimtext.CreateCompressed(path)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	if closeErr := w.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// valueKind is the arrow type a result column is written with
type valueKind int

const (
	kindNull valueKind = iota
	kindInt
	kindFloat
	kindString
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case nil:
		return kindNull
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return kindInt
	case float32, float64:
		return kindFloat
	default:
		return kindString
	}
}

// columnKind widens the kinds of all values of column i. Integers widen to
// floats; anything else mixed is a string.
func (r *resultSet) columnKind(i int) valueKind {
	kind := kindNull
	for _, row := range r.rows {
		k := kindOf(row[i])
		switch {
		case k == kindNull || k == kind:
		case kind == kindNull:
			kind = k
		case (kind == kindInt && k == kindFloat) || (kind == kindFloat && k == kindInt):
			kind = kindFloat
		default:
			return kindString
		}
	}
	if kind == kindNull {
		return kindString
	}
	return kind
}

func (k valueKind) arrowType() arrow.DataType {
	switch k {
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

func writeParquet(path string, res *resultSet) error {
	kinds := make([]valueKind, len(res.columns))
	fields := make([]arrow.Field, len(res.columns))
	for i, name := range res.columns {
		kinds[i] = res.columnKind(i)
		fields[i] = arrow.Field{Name: name, Type: kinds[i].arrowType(), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	for _, row := range res.rows {
		for i, v := range row {
			appendArrowValue(builder.Field(i), kinds[i], v)
		}
	}
	record := builder.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	fw, err := pqarrow.NewFileWriter(schema, &buf, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		return newError(ErrorTypeOutput, fmt.Errorf("failed to create parquet writer: %w", err))
	}
	if err := fw.Write(record); err != nil {
		_ = fw.Close()
		return newError(ErrorTypeOutput, fmt.Errorf("failed to write parquet record: %w", err))
	}
	if err := fw.Close(); err != nil {
		return newError(ErrorTypeOutput, fmt.Errorf("failed to close parquet writer: %w", err))
	}
	if err := writeBytes(path, buf.Bytes()); err != nil {
		return newError(ErrorTypeIO, err)
	}
	return nil
}

func appendArrowValue(b array.Builder, kind valueKind, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch kind {
	case kindInt:
		b.(*array.Int64Builder).Append(toInt64(v))
	case kindFloat:
		b.(*array.Float64Builder).Append(toFloat64(v))
	default:
		b.(*array.StringBuilder).Append(formatValue(v))
	}
}

func writeXLSX(path string, res *resultSet, withHeader bool) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	row := 1
	if withHeader {
		header := make([]any, len(res.columns))
		for i, name := range res.columns {
			header[i] = name
		}
		if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
			return newError(ErrorTypeOutput, err)
		}
		row++
	}
	for _, values := range res.rows {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return newError(ErrorTypeOutput, err)
		}
		cells := make([]any, len(values))
		for i, v := range values {
			cells[i] = xlsxValue(v)
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &cells); err != nil {
			return newError(ErrorTypeOutput, err)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return newError(ErrorTypeOutput, err)
	}
	if err := writeBytes(path, buf.Bytes()); err != nil {
		return newError(ErrorTypeIO, err)
	}
	return nil
}

// xlsxValue keeps numbers numeric; everything else becomes text.
func xlsxValue(v any) any {
	switch kindOf(v) {
	case kindNull:
		return nil
	case kindInt:
		return toInt64(v)
	case kindFloat:
		return toFloat64(v)
	default:
		return formatValue(v)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return float64(toInt64(v))
	}
}

// formatValue renders a scanned database value as a field.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case fmt.Stringer:
		return x.String()
	}
	if kindOf(v) == kindInt {
		return strconv.FormatInt(toInt64(v), 10)
	}
	return fmt.Sprint(v)
}
