// Package engine runs queries against delimited text tables in an embedded SQL
// database and writes their results.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	// DuckDB database/sql driver, registered as "duckdb"
	_ "github.com/duckdb/duckdb-go/v2"
	// SQLite database/sql driver, registered as "sqlite"
	_ "modernc.org/sqlite"

	"github.com/nao1215/delimtext"
	"github.com/nao1215/delimtext/domain/model"
)

// Driver selects the embedded database.
type Driver int

const (
	// DriverSQLite runs queries on an in-memory SQLite database
	DriverSQLite Driver = iota
	// DriverDuckDB runs queries on an in-memory DuckDB database
	DriverDuckDB
)

// String returns the string representation of Driver
func (d Driver) String() string {
	switch d {
	case DriverSQLite:
		return "sqlite"
	case DriverDuckDB:
		return "duckdb"
	default:
		return "unknown"
	}
}

// ParseDriver parses a driver name produced by Driver.String.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "duckdb":
		return DriverDuckDB, nil
	default:
		return DriverSQLite, fmt.Errorf("%w: %q", ErrUnsupportedDriver, s)
	}
}

// open opens a private in-memory database. A single connection keeps every
// statement on the same database.
func (d Driver) open() (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch d {
	case DriverSQLite:
		db, err = sql.Open("sqlite", ":memory:")
	case DriverDuckDB:
		db, err = sql.Open("duckdb", "")
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDriver, int(d))
	}
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// sqlType returns the column type name of ct in the driver's SQL dialect.
// Datetimes are stored as text.
func (d Driver) sqlType(ct model.ColumnType) string {
	if d == DriverDuckDB {
		switch ct {
		case model.ColumnTypeInteger:
			return "BIGINT"
		case model.ColumnTypeReal:
			return "DOUBLE"
		default:
			return "VARCHAR"
		}
	}
	switch ct {
	case model.ColumnTypeInteger:
		return "INTEGER"
	case model.ColumnTypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithCommentPrefix skips input lines starting with prefix.
func WithCommentPrefix(prefix string) Option {
	return func(e *Engine) {
		e.commentPrefix = prefix
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTypeInference toggles column type inference. Without it every column is text.
func WithTypeInference(enabled bool) Option {
	return func(e *Engine) {
		e.inferTypes = enabled
	}
}

// Engine is an in-process delimtext.QueryEngine. Every Execute loads the input
// into a fresh in-memory database, so an Engine is safe for concurrent use.
type Engine struct {
	driver        Driver
	commentPrefix string
	inferTypes    bool
	logger        *slog.Logger
}

var _ delimtext.QueryEngine = (*Engine)(nil)

// New creates an Engine on driver.
func New(driver Driver, opts ...Option) *Engine {
	e := &Engine{
		driver:     driver,
		inferTypes: true,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Driver returns the database the engine runs on.
func (e *Engine) Driver() Driver {
	return e.driver
}

// Execute loads req.InputPath as a table named after the file, runs req.Query
// and writes the result to req.OutputPath. Failures are *Error values.
func (e *Engine) Execute(ctx context.Context, req delimtext.EngineRequest) ([]string, error) {
	start := time.Now()
	tbl, warnings, err := loadTable(req.InputPath, req.Encoding, req.InputDialect, req.SkipHeaders, e.commentPrefix)
	if err != nil {
		return nil, err
	}
	if !e.inferTypes {
		for i := range tbl.columns {
			tbl.columns[i].Type = model.ColumnTypeText
		}
	}

	db, err := e.driver.open()
	if err != nil {
		return nil, newError(ErrorTypeIO, err)
	}
	defer db.Close()

	if err := e.createTable(ctx, db, tbl); err != nil {
		return nil, newError(ErrorTypeInput, err)
	}
	e.logger.Debug("input table loaded",
		slog.String("table", tbl.name),
		slog.Int("columns", len(tbl.columns)),
		slog.Int("records", len(tbl.records)),
		slog.Duration("duration", time.Since(start)))

	res, err := e.query(ctx, db, req.Query)
	if err != nil {
		return nil, newError(ErrorTypeQuery, err)
	}

	outWarnings, err := writeResult(req, res)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("result written",
		slog.String("output", req.OutputPath),
		slog.Int("rows", len(res.rows)),
		slog.Duration("duration", time.Since(start)))
	return append(warnings, outWarnings...), nil
}

// createTable creates tbl and inserts its records in one transaction.
func (e *Engine) createTable(ctx context.Context, db *sql.DB, tbl *table) error {
	if _, err := db.ExecContext(ctx, e.buildCreateTableQuery(tbl)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tbl.name, err)
	}
	if len(tbl.records) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, buildInsertQuery(tbl))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, record := range tbl.records {
		if _, err := stmt.ExecContext(ctx, convertRecord(record, tbl.columns)...); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// buildCreateTableQuery constructs a CREATE TABLE query for the given table
func (e *Engine) buildCreateTableQuery(tbl *table) string {
	columns := make([]string, 0, len(tbl.columns))
	for _, col := range tbl.columns {
		columns = append(columns, quoteIdent(col.Name)+" "+e.driver.sqlType(col.Type))
	}
	return fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(tbl.name), strings.Join(columns, ", "))
}

// buildInsertQuery constructs an INSERT query for the given table
func buildInsertQuery(tbl *table) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tbl.columns)), ", ")
	return fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, quoteIdent(tbl.name), placeholders)
}

// quoteIdent quotes a SQL identifier
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// convertRecord converts fields to the inferred column types. Empty numeric and
// datetime fields are NULL.
func convertRecord(record model.Record, columns []model.ColumnInfo) []any {
	args := make([]any, len(columns))
	for i, col := range columns {
		value := record[i]
		trimmed := strings.TrimSpace(value)
		if col.Type != model.ColumnTypeText && trimmed == "" {
			args[i] = nil
			continue
		}
		switch col.Type {
		case model.ColumnTypeInteger:
			if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
				args[i] = n
				continue
			}
		case model.ColumnTypeReal:
			if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
				args[i] = f
				continue
			}
		case model.ColumnTypeDatetime:
			args[i] = trimmed
			continue
		}
		args[i] = value
	}
	return args
}

// resultSet is a fully read query result.
type resultSet struct {
	columns []string
	rows    [][]any
}

func (e *Engine) query(ctx context.Context, db *sql.DB, query string) (*resultSet, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &resultSet{columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		res.rows = append(res.rows, values)
	}
	return res, rows.Err()
}
