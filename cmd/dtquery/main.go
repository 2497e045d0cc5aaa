// Command dtquery runs one query against a delimited text table and reports the
// outcome as a single JSON object on stdout. It is the external backend of the
// delimtext dispatcher.
//
// Usage:
//
//	dtquery --query 'SELECT a1, count(*) FROM data GROUP BY a1' --input data.csv --output out.csv
//
// Exit status is 0 whenever a report was printed, including engine errors, and 2
// for invalid flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	json "github.com/goccy/go-json"

	"github.com/nao1215/delimtext"
	"github.com/nao1215/delimtext/domain/model"
	"github.com/nao1215/delimtext/engine"
)

// errorTypeUnexpected is reported for failures outside the engine error types
const errorTypeUnexpected = "unexpected"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options are the parsed flags
type options struct {
	query         string
	input         string
	output        string
	delim         string
	policy        string
	outDelim      string
	outPolicy     string
	outFormat     string
	encoding      string
	engine        string
	commentPrefix string
	skipHeaders   bool
	verbose       bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var opts options
	fs := flag.NewFlagSet("dtquery", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.query, "query", "", "query text (required)")
	fs.StringVar(&opts.input, "input", "", "input table path (required)")
	fs.StringVar(&opts.output, "output", "", "result table path; defaults to <tmp>/<stem>_result<ext>")
	fs.StringVar(&opts.delim, "delim", ",", "input delimiter")
	fs.StringVar(&opts.policy, "policy", "", "input quoting policy: monocolumn, simple, quoted, quoted_rfc, whitespace")
	fs.StringVar(&opts.outDelim, "out-delim", "", "result delimiter; defaults to the one implied by --out-format")
	fs.StringVar(&opts.outPolicy, "out-policy", "", "result quoting policy")
	fs.StringVar(&opts.outFormat, "out-format", "input", "result format: input, csv, tsv, parquet, xlsx")
	fs.StringVar(&opts.encoding, "encoding", delimtext.EncodingUTF8, "text encoding: utf-8, latin-1, windows-1252")
	fs.StringVar(&opts.engine, "engine", "sqlite", "database engine: sqlite, duckdb")
	fs.StringVar(&opts.commentPrefix, "comment-prefix", "", "skip input lines starting with this prefix")
	fs.BoolVar(&opts.skipHeaders, "skip-headers", false, "treat the first record as column names")
	fs.BoolVar(&opts.verbose, "verbose", false, "log to stderr; breaks the empty-stderr contract")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.query == "" {
		return nil, errors.New("--query is required")
	}
	if opts.input == "" {
		return nil, errors.New("--input is required")
	}
	return &opts, nil
}

// request builds the engine request from the flags
func (o *options) request() (delimtext.EngineRequest, engine.Driver, error) {
	var req delimtext.EngineRequest

	inDialect, err := dialectFromFlags(o.delim, o.policy)
	if err != nil {
		return req, 0, err
	}
	format, err := model.ParseOutputFormat(o.outFormat)
	if err != nil {
		return req, 0, err
	}
	outDialect := delimtext.ResolveOutputDialect(format, inDialect)
	if format.IsDelimited() && (o.outDelim != "" || o.outPolicy != "") {
		delim := o.outDelim
		if delim == "" {
			delim = outDialect.Delimiter
		}
		if outDialect, err = dialectFromFlags(delim, o.outPolicy); err != nil {
			return req, 0, err
		}
	}
	encoding, err := delimtext.NormalizeEncoding(o.encoding)
	if err != nil {
		return req, 0, err
	}
	driver, err := engine.ParseDriver(o.engine)
	if err != nil {
		return req, 0, err
	}

	output := o.output
	if output == "" {
		output = delimtext.DefaultOutputPath(o.input, format)
	}
	return delimtext.EngineRequest{
		Query:         o.query,
		InputPath:     o.input,
		InputDialect:  inDialect,
		OutputPath:    output,
		OutputDialect: outDialect,
		OutputFormat:  format,
		Encoding:      encoding,
		SkipHeaders:   o.skipHeaders,
	}, driver, nil
}

// dialectFromFlags pairs a delimiter with a policy name, defaulting the policy
// from the delimiter.
func dialectFromFlags(delim, policy string) (model.Dialect, error) {
	if policy == "" {
		return model.NewDialect(delim, delimtext.DefaultPolicyFor(delim)), nil
	}
	p, err := model.ParseQuotingPolicy(policy)
	if err != nil {
		return model.Dialect{}, err
	}
	if p != model.PolicyMonocolumn && delim == "" {
		return model.Dialect{}, fmt.Errorf("policy %s needs a delimiter", p)
	}
	return model.NewDialect(delim, p), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "dtquery:", err)
		}
		return 2
	}
	req, driver, err := opts.request()
	if err != nil {
		fmt.Fprintln(stderr, "dtquery:", err)
		return 2
	}

	logger := slog.New(slog.DiscardHandler)
	if opts.verbose {
		logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	eng := engine.New(driver, engine.WithCommentPrefix(opts.commentPrefix), engine.WithLogger(logger))

	var report delimtext.Report
	warnings, err := eng.Execute(ctx, req)
	if err != nil {
		report = errorReport(err)
	} else {
		report.Warnings = warnings
	}

	if err := json.NewEncoder(stdout).Encode(report); err != nil {
		fmt.Fprintln(stderr, "dtquery:", err)
		return 1
	}
	return 0
}

func errorReport(err error) delimtext.Report {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		return delimtext.NewErrorReport(engineErr.Type, engineErr.Err.Error())
	}
	return delimtext.NewErrorReport(errorTypeUnexpected, err.Error())
}
