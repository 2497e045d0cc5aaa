package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/delimtext/domain/model"
)

// datetimeLayouts are the datetime spellings recognized as DATETIME columns
var datetimeLayouts = []struct {
	pattern *regexp.Regexp
	layouts []string
}{
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339, time.RFC3339Nano},
	},
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999"},
	},
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{time.DateOnly},
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}( \d{1,2}:\d{2}:\d{2}( (AM|PM))?)?$`),
		[]string{"1/2/2006", "1/2/2006 15:04:05", "1/2/2006 3:04:05 PM"},
	},
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}( \d{1,2}:\d{2}:\d{2})?$`),
		[]string{"2.1.2006", "2.1.2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2}(\.\d+)?)?$`),
		[]string{"15:04", "15:04:05", "15:04:05.999999999"},
	},
}

// isDatetime checks if a string value represents a datetime
func isDatetime(value string) bool {
	for _, dl := range datetimeLayouts {
		if !dl.pattern.MatchString(value) {
			continue
		}
		for _, layout := range dl.layouts {
			if _, err := time.Parse(layout, value); err == nil {
				return true
			}
		}
	}
	return false
}

// inferColumnType infers the column type from its values. Empty values are
// ignored. Integers widen to REAL; any other mix is TEXT.
func inferColumnType(values []string) model.ColumnType {
	var hasInteger, hasReal, hasDatetime bool
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch {
		case isInteger(value):
			hasInteger = true
		case isReal(value):
			hasReal = true
		case isDatetime(value):
			hasDatetime = true
		default:
			return model.ColumnTypeText
		}
		if hasDatetime && (hasInteger || hasReal) {
			return model.ColumnTypeText
		}
	}

	switch {
	case hasDatetime:
		return model.ColumnTypeDatetime
	case hasReal:
		return model.ColumnTypeReal
	case hasInteger:
		return model.ColumnTypeInteger
	default:
		return model.ColumnTypeText
	}
}

func isInteger(value string) bool {
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

func isReal(value string) bool {
	// ParseFloat accepts "NaN" and "Inf", which are text in a table
	if strings.ContainsAny(value, "nNiI") {
		return false
	}
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// inferColumnsInfo infers the type of every column from all records.
func inferColumnsInfo(names []string, records []model.Record) []model.ColumnInfo {
	columns := make([]model.ColumnInfo, len(names))
	for i, name := range names {
		values := make([]string, 0, len(records))
		for _, record := range records {
			if i < len(record) {
				values = append(values, record[i])
			}
		}
		columns[i] = model.ColumnInfo{Name: name, Type: inferColumnType(values)}
	}
	return columns
}
