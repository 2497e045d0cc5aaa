// Package delimtext is an engine for delimited text tables: CSV, TSV and their
// relatives with any delimiter and quoting policy.
//
// It splits lines into fields, guesses the dialect of a document, maps records
// that span several physical lines, samples bounded preview windows, and runs
// queries against a table on an in-process engine or an external process while
// remembering which source table produced each result.
//
// # Dialects
//
// A Dialect is a delimiter plus a quoting policy:
//   - monocolumn: every line is a single field
//   - simple: split on every delimiter, quotes are plain text
//   - quoted: CSV quoting, one record per line
//   - quoted_rfc: CSV quoting where quoted fields may contain line breaks
//   - whitespace: split on runs of spaces
//
// Quoted splitting is lenient. Malformed quoting never fails a split; it sets a
// quote warning and the text is kept as written.
//
// # Basic Usage
//
//	fields, warning := delimtext.Split(`a,"b,c",d`, delimtext.NewDialect(",", delimtext.PolicyQuoted), false)
//	// fields == []string{"a", "b,c", "d"}, warning == false
//
//	src, err := delimtext.LoadFile("data.csv.gz", delimtext.EncodingUTF8)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dialect, ok := delimtext.DetectDialect("data.csv.gz", src, delimtext.DetectOptions{})
//
// # Sessions
//
// A Session keeps what a host remembers between calls: dialects chosen per
// document, lint reports, result provenance and running queries.
//
//	session, err := delimtext.NewBuilder().
//	    WithCommentPrefix("#").
//	    WithQueryEngine(engine.New(engine.DriverSQLite)).
//	    WithExternalCommand("dtquery").
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := session.Run(ctx, delimtext.QueryRequest{
//	    Query:        "SELECT a1, a2 FROM data WHERE a3 > 10",
//	    InputPath:    "data.csv",
//	    InputDialect: dialect,
//	    OutputFormat: delimtext.OutputCSV,
//	})
//
// Query errors are *QueryError values. An integration error means the backend
// could not be run or spoke outside its contract; an engine error is a failure
// the backend reported, such as a malformed query.
//
// # External Backends
//
// An external backend is any executable accepting the dtquery flags and printing
// exactly one JSON object on stdout: {"warnings": [...]} on success or
// {"error_type": "...", "error_msg": "..."} on failure. It must exit 0 and keep
// stderr empty. The cmd/dtquery binary is such a backend built on the engine
// package.
//
// # Table Naming
//
// The engine names the input table after the file:
//   - "users.csv" becomes table "users"
//   - "data.tsv.gz" becomes table "data"
//
// Columns are named a1, a2, ... unless the first record is a header.
package delimtext
