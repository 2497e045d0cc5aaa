package delimtext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nao1215/delimtext/domain/model"
)

// BackendID selects the backend a query runs on.
type BackendID int

const (
	// BackendInProcess runs the query through the configured QueryEngine
	BackendInProcess BackendID = iota
	// BackendExternal runs the query in a subprocess speaking the JSON report contract
	BackendExternal
)

// String returns the string representation of BackendID
func (b BackendID) String() string {
	switch b {
	case BackendInProcess:
		return "in-process"
	case BackendExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ParseBackendID parses a backend name produced by BackendID.String.
func ParseBackendID(s string) (BackendID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "in-process", "inprocess":
		return BackendInProcess, nil
	case "external":
		return BackendExternal, nil
	default:
		return BackendInProcess, NewErrorContext("parse backend", "").
			WithDetails("unknown backend "+strconv.Quote(s)).Error(ErrInvalidConfig)
	}
}

const (
	// unknownIntegrationError is reported when a backend fails without saying why
	unknownIntegrationError = "Unknown Integration Error"
	// reportParseError prefixes the decode error of a malformed report
	reportParseError = "unable to parse JSON report"
)

// QueryRequest is one query run.
type QueryRequest struct {
	// Query is the query text, passed to the backend unchanged
	Query string
	// InputPath is the source table
	InputPath string
	// OutputPath is the result table. Empty means <stem>_result<ext> in the system temp dir.
	OutputPath string
	// InputDialect is the dialect of InputPath
	InputDialect model.Dialect
	// OutputFormat selects the result format
	OutputFormat model.OutputFormat
	// Backend selects where the query runs
	Backend BackendID
	// Encoding is the text encoding of input and output
	Encoding string
	// SkipHeaders treats the first record as a header
	SkipHeaders bool
}

// EngineRequest is what an in-process QueryEngine receives. The output dialect
// and path are already resolved.
type EngineRequest struct {
	// Query is the query text
	Query string
	// InputPath is the source table
	InputPath string
	// InputDialect is the dialect of InputPath
	InputDialect model.Dialect
	// OutputPath is the resolved result path
	OutputPath string
	// OutputDialect is the result dialect; zero for binary formats
	OutputDialect model.Dialect
	// OutputFormat selects the result writer
	OutputFormat model.OutputFormat
	// Encoding is the text encoding of input and output
	Encoding string
	// SkipHeaders treats the first record as a header
	SkipHeaders bool
}

// QueryEngine executes queries in process and returns warnings. Errors that are
// not a *model.QueryError are reported as engine errors.
type QueryEngine interface {
	Execute(ctx context.Context, req EngineRequest) ([]string, error)
}

// ResolveOutputDialect returns the dialect a result is written with. CSV and TSV
// are fixed dialects; same-as-input reuses input. Binary formats have no dialect
// and get the zero Dialect.
func ResolveOutputDialect(format model.OutputFormat, input model.Dialect) model.Dialect {
	switch format {
	case model.OutputCSV:
		return model.NewDialect(",", model.PolicyQuoted)
	case model.OutputTSV:
		return model.NewDialect("\t", model.PolicySimple)
	case model.OutputParquet, model.OutputXLSX:
		return model.Dialect{}
	default:
		return input
	}
}

// DefaultOutputPath returns <tmp>/<stem>_result<ext> for inputPath. The extension
// follows the output format, or the input's own extension for same-as-input.
func DefaultOutputPath(inputPath string, format model.OutputFormat) string {
	base := filepath.Base(inputPath)
	if IsScratchPath(inputPath) {
		base = "untitled"
	}
	base = TrimCompressionExt(base)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if format != model.OutputSameAsInput {
		ext = format.Extension()
	}
	if ext == "" {
		ext = ".txt"
	}
	return filepath.Join(os.TempDir(), stem+"_result"+ext)
}

// DispatcherConfig configures a Dispatcher. Zero fields get defaults.
type DispatcherConfig struct {
	// Engine runs BackendInProcess queries
	Engine QueryEngine
	// Runner spawns BackendExternal processes. Defaults to an ExecRunner.
	Runner CommandRunner
	// Command is the BackendExternal executable
	Command string
	// CommandArgs precede the query arguments
	CommandArgs []string
	// Provenance receives successful runs. Defaults to a fresh map.
	Provenance *ResultProvenance
	// Logger defaults to a discarding logger
	Logger *slog.Logger
}

// Dispatcher runs queries on a backend and normalizes their outcome.
type Dispatcher struct {
	engine      QueryEngine
	runner      CommandRunner
	command     string
	commandArgs []string
	provenance  *ResultProvenance
	running     *runRegistry
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		engine:      cfg.Engine,
		runner:      cfg.Runner,
		command:     cfg.Command,
		commandArgs: slices.Clone(cfg.CommandArgs),
		provenance:  cfg.Provenance,
		running:     newRunRegistry(),
		logger:      cfg.Logger,
	}
	if d.runner == nil {
		d.runner = NewExecRunner()
	}
	if d.provenance == nil {
		d.provenance = NewResultProvenance()
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// Provenance returns the map successful runs are recorded in.
func (d *Dispatcher) Provenance() *ResultProvenance {
	return d.provenance
}

// Run executes req and returns its result. A non-nil error is always a
// *model.QueryError.
//
// On success the output path is recorded as a result of the input path. A run
// writing to the output path of a run still in progress cancels the earlier run.
func (d *Dispatcher) Run(ctx context.Context, req QueryRequest) (*model.QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, model.NewEngineError("query is empty")
	}
	if strings.TrimSpace(req.InputPath) == "" {
		return nil, model.NewIntegrationError("input path is empty")
	}

	outDialect := ResolveOutputDialect(req.OutputFormat, req.InputDialect)
	outPath := req.OutputPath
	if outPath == "" {
		outPath = DefaultOutputPath(req.InputPath, req.OutputFormat)
	}
	ereq := EngineRequest{
		Query:         req.Query,
		InputPath:     req.InputPath,
		InputDialect:  req.InputDialect,
		OutputPath:    outPath,
		OutputDialect: outDialect,
		OutputFormat:  req.OutputFormat,
		Encoding:      req.Encoding,
		SkipHeaders:   req.SkipHeaders,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	id := d.running.add(outPath, cancel)
	defer d.running.remove(outPath, id)

	logger := d.logger.With(
		slog.String("backend", req.Backend.String()),
		slog.String("input", req.InputPath),
		slog.String("output", outPath),
	)
	logger.Info("query started")
	start := time.Now()

	var (
		warnings []string
		qerr     *model.QueryError
	)
	switch req.Backend {
	case BackendInProcess:
		warnings, qerr = d.runInProcess(runCtx, ereq)
	case BackendExternal:
		warnings, qerr = d.runExternal(runCtx, ereq)
	default:
		qerr = model.NewIntegrationError("unknown backend " + req.Backend.String())
	}
	if qerr != nil {
		logger.Warn("query failed",
			slog.String("kind", qerr.Kind.String()),
			slog.String("error", qerr.Message),
			slog.Duration("duration", time.Since(start)))
		return nil, qerr
	}

	d.provenance.Record(outPath, req.InputPath)
	logger.Info("query finished",
		slog.Int("warnings", len(warnings)),
		slog.Duration("duration", time.Since(start)))
	return &model.QueryResult{
		Warnings:      warnings,
		OutputPath:    outPath,
		OutputDialect: outDialect,
		OutputFormat:  req.OutputFormat,
	}, nil
}

// RunningQueries returns the output paths of runs in progress, sorted.
func (d *Dispatcher) RunningQueries() []string {
	return d.running.outputs()
}

// Cancel stops the run writing to output. It reports whether one was running.
func (d *Dispatcher) Cancel(output string) bool {
	return d.running.cancel(output)
}

func (d *Dispatcher) runInProcess(ctx context.Context, req EngineRequest) ([]string, *model.QueryError) {
	if d.engine == nil {
		return nil, model.NewIntegrationError(ErrBackendNotConfigured.Error() + ": no in-process engine")
	}
	warnings, err := d.engine.Execute(ctx, req)
	if err == nil {
		return warnings, nil
	}
	if ctx.Err() != nil {
		return nil, model.NewIntegrationError("query was cancelled")
	}
	var qerr *model.QueryError
	if errors.As(err, &qerr) {
		return nil, qerr
	}
	return nil, model.NewEngineError(err.Error())
}

func (d *Dispatcher) runExternal(ctx context.Context, req EngineRequest) ([]string, *model.QueryError) {
	if d.command == "" {
		return nil, model.NewIntegrationError(ErrBackendNotConfigured.Error() + ": no external command")
	}
	args := append(slices.Clone(d.commandArgs), externalArgs(req)...)

	var stdout, stderr bytes.Buffer
	var terminal *ProcessEvent
	for ev := range d.runner.Start(ctx, d.command, args...) {
		if terminal != nil {
			// only the first terminal event resolves the run
			continue
		}
		switch ev.Kind {
		case ProcessStdout:
			stdout.Write(ev.Data)
		case ProcessStderr:
			stderr.Write(ev.Data)
		case ProcessExit, ProcessError:
			terminal = &ev
		}
	}

	if ctx.Err() != nil {
		return nil, model.NewIntegrationError("query was cancelled")
	}
	if terminal == nil {
		return nil, integrationFailure(stderr.Bytes(), errors.New("backend process ended without an exit status"))
	}
	return interpretReport(*terminal, stdout.Bytes(), stderr.Bytes())
}

// externalArgs renders req as dtquery flags.
func externalArgs(req EngineRequest) []string {
	args := []string{
		"--query", req.Query,
		"--input", req.InputPath,
		"--delim", req.InputDialect.Delimiter,
		"--policy", req.InputDialect.Policy.String(),
		"--output", req.OutputPath,
		"--out-format", req.OutputFormat.String(),
	}
	if req.OutputFormat.IsDelimited() {
		args = append(args,
			"--out-delim", req.OutputDialect.Delimiter,
			"--out-policy", req.OutputDialect.Policy.String())
	}
	if req.Encoding != "" {
		args = append(args, "--encoding", req.Encoding)
	}
	if req.SkipHeaders {
		args = append(args, "--skip-headers")
	}
	return args
}

// Report is the JSON object an external backend prints on stdout.
type Report struct {
	Warnings  []string `json:"warnings,omitempty"`
	ErrorType *string  `json:"error_type,omitempty"`
	ErrorMsg  *string  `json:"error_msg,omitempty"`
}

// NewErrorReport creates the report of a failed run.
func NewErrorReport(errorType, msg string) Report {
	return Report{ErrorType: &errorType, ErrorMsg: &msg}
}

// Failed reports whether the report carries an error.
func (r Report) Failed() bool {
	return r.ErrorType != nil || r.ErrorMsg != nil
}

// Message joins error type and message.
func (r Report) Message() string {
	var parts []string
	if r.ErrorType != nil && *r.ErrorType != "" {
		parts = append(parts, *r.ErrorType)
	}
	if r.ErrorMsg != nil && *r.ErrorMsg != "" {
		parts = append(parts, *r.ErrorMsg)
	}
	if len(parts) == 0 {
		return "unknown error"
	}
	return strings.Join(parts, ": ")
}

// interpretReport applies the success criterion: exit code 0, empty stderr and
// stdout holding exactly one JSON object.
func interpretReport(exit ProcessEvent, stdout, stderr []byte) ([]string, *model.QueryError) {
	if exit.Kind == ProcessError {
		return nil, integrationFailure(stderr, exit.Err)
	}
	if exit.ExitCode != 0 || len(bytes.TrimSpace(stderr)) > 0 || len(bytes.TrimSpace(stdout)) == 0 {
		return nil, integrationFailure(stderr, nil)
	}
	report, err := decodeReport(stdout)
	if err != nil {
		return nil, integrationFailure(stderr, fmt.Errorf("%s: %w", reportParseError, err))
	}
	if report.Failed() {
		return nil, model.NewEngineError(report.Message())
	}
	return report.Warnings, nil
}

func decodeReport(stdout []byte) (Report, error) {
	var report Report
	dec := json.NewDecoder(bytes.NewReader(stdout))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return report, err
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return report, errors.New("report is not a JSON object")
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return report, errors.New("unexpected output after the report")
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		return report, err
	}
	return report, nil
}

// integrationFailure carries stderr, then cause, then a generic message.
func integrationFailure(stderr []byte, cause error) *model.QueryError {
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return model.NewIntegrationError(msg)
	}
	if cause != nil {
		return model.NewIntegrationError(cause.Error())
	}
	return model.NewIntegrationError(unknownIntegrationError)
}

// runRegistry tracks runs in progress by lower-cased output path.
type runRegistry struct {
	mu     sync.Mutex
	nextID uint64
	runs   map[string]registeredRun
}

type registeredRun struct {
	id     uint64
	output string
	cancel context.CancelFunc
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]registeredRun)}
}

func (r *runRegistry) add(output string, cancel context.CancelFunc) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := provenanceKey(output)
	if prev, ok := r.runs[key]; ok {
		prev.cancel()
	}
	r.nextID++
	r.runs[key] = registeredRun{id: r.nextID, output: output, cancel: cancel}
	return r.nextID
}

// remove drops the run unless a newer run replaced it.
func (r *runRegistry) remove(output string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := provenanceKey(output)
	if run, ok := r.runs[key]; ok && run.id == id {
		delete(r.runs, key)
	}
}

func (r *runRegistry) cancel(output string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[provenanceKey(output)]
	if ok {
		run.cancel()
	}
	return ok
}

func (r *runRegistry) outputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.output)
	}
	sort.Strings(out)
	return out
}
