package delimtext

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/delimtext/domain/model"
)

// fakeRunner replays canned events. With block set it waits for cancellation.
type fakeRunner struct {
	events []ProcessEvent
	block  bool

	mu   sync.Mutex
	name string
	args []string
}

func (r *fakeRunner) Start(ctx context.Context, name string, args ...string) <-chan ProcessEvent {
	r.mu.Lock()
	r.name, r.args = name, args
	r.mu.Unlock()

	ch := make(chan ProcessEvent, len(r.events)+1)
	if r.block {
		go func() {
			defer close(ch)
			<-ctx.Done()
			ch <- ProcessEvent{Kind: ProcessError, Err: ctx.Err()}
		}()
		return ch
	}
	for _, ev := range r.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func (r *fakeRunner) invocation() (string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name, r.args
}

type fakeEngine struct {
	execute func(ctx context.Context, req EngineRequest) ([]string, error)
}

func (e *fakeEngine) Execute(ctx context.Context, req EngineRequest) ([]string, error) {
	return e.execute(ctx, req)
}

func stdoutEvent(s string) ProcessEvent { return ProcessEvent{Kind: ProcessStdout, Data: []byte(s)} }
func stderrEvent(s string) ProcessEvent { return ProcessEvent{Kind: ProcessStderr, Data: []byte(s)} }
func exitEvent(code int) ProcessEvent   { return ProcessEvent{Kind: ProcessExit, ExitCode: code} }

func externalRequest() QueryRequest {
	return QueryRequest{
		Query:        "SELECT a1 FROM input",
		InputPath:    "/data/input.csv",
		OutputPath:   "/data/input_result.csv",
		InputDialect: model.NewDialect(",", model.PolicyQuoted),
		OutputFormat: model.OutputCSV,
		Backend:      BackendExternal,
	}
}

func TestDispatcherExternalOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		events       []ProcessEvent
		wantKind     model.ErrorKind
		wantMessage  string
		wantWarnings []string
		wantErr      bool
		// partial matches wantMessage as a prefix
		partial bool
	}{
		{
			name:        "non-zero exit carries stderr",
			events:      []ProcessEvent{stderrEvent("boom"), exitEvent(1)},
			wantErr:     true,
			wantKind:    model.IntegrationError,
			wantMessage: "boom",
		},
		{
			name:         "success with warnings",
			events:       []ProcessEvent{stdoutEvent(`{"warn`), stdoutEvent(`ings":["w1","w2"]}` + "\n"), exitEvent(0)},
			wantWarnings: []string{"w1", "w2"},
		},
		{
			name:   "success without warnings",
			events: []ProcessEvent{stdoutEvent(`{}`), exitEvent(0)},
		},
		{
			name:        "engine error report",
			events:      []ProcessEvent{stdoutEvent(`{"error_type":"query execution","error_msg":"no such column: b"}`), exitEvent(0)},
			wantErr:     true,
			wantKind:    model.EngineError,
			wantMessage: "query execution: no such column: b",
		},
		{
			name:        "silent failure",
			events:      []ProcessEvent{exitEvent(0)},
			wantErr:     true,
			wantKind:    model.IntegrationError,
			wantMessage: unknownIntegrationError,
		},
		{
			name:        "stderr output fails a valid report",
			events:      []ProcessEvent{stdoutEvent(`{}`), stderrEvent("deprecation notice\n"), exitEvent(0)},
			wantErr:     true,
			wantKind:    model.IntegrationError,
			wantMessage: "deprecation notice",
		},
		{
			name:        "stdout is not json",
			events:      []ProcessEvent{stdoutEvent("Traceback"), exitEvent(0)},
			wantErr:     true,
			wantKind:    model.IntegrationError,
			wantMessage: reportParseError + ": ",
			partial:     true,
		},
		{
			name:        "two objects",
			events:      []ProcessEvent{stdoutEvent(`{}{}`), exitEvent(0)},
			wantErr:     true,
			wantKind:    model.IntegrationError,
			wantMessage: reportParseError + ": unexpected output after the report",
		},
		{
			name:        "array",
			events:      []ProcessEvent{stdoutEvent(`[]`), exitEvent(0)},
			wantErr:     true,
			wantKind:    model.IntegrationError,
			wantMessage: reportParseError + ": report is not a JSON object",
		},
		{
			name:        "null",
			events:      []ProcessEvent{stdoutEvent(`null`), exitEvent(0)},
			wantErr:     true,
			wantKind:    model.IntegrationError,
			wantMessage: reportParseError + ": report is not a JSON object",
		},
		{
			name:        "spawn failure",
			events:      []ProcessEvent{{Kind: ProcessError, Err: errors.New(`exec: "dtquery": executable file not found`)}},
			wantErr:     true,
			wantKind:    model.IntegrationError,
			wantMessage: `exec: "dtquery": executable file not found`,
		},
		{
			name:   "exit before error resolves with the exit",
			events: []ProcessEvent{stdoutEvent(`{}`), exitEvent(0), {Kind: ProcessError, Err: errors.New("late")}},
		},
		{
			name:        "error before exit resolves with the error",
			events:      []ProcessEvent{{Kind: ProcessError, Err: errors.New("pipe closed")}, stdoutEvent(`{}`), exitEvent(0)},
			wantErr:     true,
			wantKind:    model.IntegrationError,
			wantMessage: "pipe closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDispatcher(DispatcherConfig{
				Runner:  &fakeRunner{events: tt.events},
				Command: "dtquery",
			})
			req := externalRequest()
			result, err := d.Run(context.Background(), req)

			if tt.wantErr {
				assert.Nil(t, result)
				var qerr *model.QueryError
				require.ErrorAs(t, err, &qerr)
				assert.Equal(t, tt.wantKind, qerr.Kind)
				if tt.partial {
					assert.True(t, strings.HasPrefix(qerr.Message, tt.wantMessage), "message %q", qerr.Message)
				} else {
					assert.Equal(t, tt.wantMessage, qerr.Message)
				}
				assert.False(t, d.Provenance().IsResult(req.OutputPath))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantWarnings, result.Warnings)
			assert.Equal(t, req.OutputPath, result.OutputPath)
			assert.Equal(t, model.OutputCSV, result.OutputFormat)
			assert.Equal(t, model.NewDialect(",", model.PolicyQuoted), result.OutputDialect)

			src, ok := d.Provenance().SourceOf(req.OutputPath)
			require.True(t, ok)
			assert.Equal(t, req.InputPath, src)
		})
	}
}

func TestDispatcherExternalArgs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{events: []ProcessEvent{stdoutEvent(`{}`), exitEvent(0)}}
	d := NewDispatcher(DispatcherConfig{
		Runner:      runner,
		Command:     "python3",
		CommandArgs: []string{"-m", "rbql"},
	})

	req := QueryRequest{
		Query:        "SELECT 1",
		InputPath:    "in.csv",
		OutputPath:   "out.csv",
		InputDialect: model.NewDialect(";", model.PolicyQuoted),
		OutputFormat: model.OutputTSV,
		Backend:      BackendExternal,
		Encoding:     "latin-1",
		SkipHeaders:  true,
	}
	_, err := d.Run(context.Background(), req)
	require.NoError(t, err)

	name, args := runner.invocation()
	assert.Equal(t, "python3", name)
	assert.Equal(t, []string{
		"-m", "rbql",
		"--query", "SELECT 1",
		"--input", "in.csv",
		"--delim", ";",
		"--policy", "quoted",
		"--output", "out.csv",
		"--out-format", "tsv",
		"--out-delim", "\t",
		"--out-policy", "simple",
		"--encoding", "latin-1",
		"--skip-headers",
	}, args)

	t.Run("binary formats have no output dialect", func(t *testing.T) {
		t.Parallel()
		args := externalArgs(EngineRequest{
			Query:        "SELECT 1",
			InputPath:    "in.csv",
			InputDialect: model.NewDialect(",", model.PolicyQuoted),
			OutputPath:   "out.parquet",
			OutputFormat: model.OutputParquet,
		})
		assert.NotContains(t, args, "--out-delim")
		assert.NotContains(t, args, "--encoding")
		assert.NotContains(t, args, "--skip-headers")
	})
}

func TestDispatcherInProcess(t *testing.T) {
	t.Parallel()

	t.Run("engine receives resolved request", func(t *testing.T) {
		t.Parallel()

		var got EngineRequest
		engine := &fakeEngine{execute: func(_ context.Context, req EngineRequest) ([]string, error) {
			got = req
			return []string{"careful"}, nil
		}}
		d := NewDispatcher(DispatcherConfig{Engine: engine})

		result, err := d.Run(context.Background(), QueryRequest{
			Query:        "SELECT * FROM input",
			InputPath:    "/data/sales.tsv",
			InputDialect: model.NewDialect("\t", model.PolicySimple),
			OutputFormat: model.OutputCSV,
		})
		require.NoError(t, err)

		want := filepath.Join(os.TempDir(), "sales_result.csv")
		assert.Equal(t, want, got.OutputPath)
		assert.Equal(t, model.NewDialect(",", model.PolicyQuoted), got.OutputDialect)
		assert.Equal(t, model.NewDialect("\t", model.PolicySimple), got.InputDialect)
		assert.Equal(t, []string{"careful"}, result.Warnings)
		assert.True(t, d.Provenance().IsResult(want))
	})

	t.Run("plain errors are engine errors", func(t *testing.T) {
		t.Parallel()

		engine := &fakeEngine{execute: func(context.Context, EngineRequest) ([]string, error) {
			return nil, errors.New("query execution: syntax error")
		}}
		d := NewDispatcher(DispatcherConfig{Engine: engine})
		_, err := d.Run(context.Background(), QueryRequest{Query: "SELEC", InputPath: "in.csv"})
		assert.True(t, model.IsEngineError(err))
		assert.Contains(t, err.Error(), "syntax error")
	})

	t.Run("query errors pass through", func(t *testing.T) {
		t.Parallel()

		engine := &fakeEngine{execute: func(context.Context, EngineRequest) ([]string, error) {
			return nil, model.NewIntegrationError("engine unavailable")
		}}
		d := NewDispatcher(DispatcherConfig{Engine: engine})
		_, err := d.Run(context.Background(), QueryRequest{Query: "SELECT 1", InputPath: "in.csv"})
		var qerr *model.QueryError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, model.NewIntegrationError("engine unavailable"), qerr)
	})

	t.Run("no engine configured", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(DispatcherConfig{})
		_, err := d.Run(context.Background(), QueryRequest{Query: "SELECT 1", InputPath: "in.csv"})
		assert.True(t, model.IsIntegrationError(err))
		assert.Contains(t, err.Error(), ErrBackendNotConfigured.Error())
	})
}

func TestDispatcherRejectsIncompleteRequests(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(DispatcherConfig{Runner: &fakeRunner{}, Command: "dtquery"})

	_, err := d.Run(context.Background(), QueryRequest{Query: "  ", InputPath: "in.csv"})
	assert.True(t, model.IsEngineError(err))

	_, err = d.Run(context.Background(), QueryRequest{Query: "SELECT 1"})
	assert.True(t, model.IsIntegrationError(err))

	noCommand := NewDispatcher(DispatcherConfig{Runner: &fakeRunner{}})
	_, err = noCommand.Run(context.Background(), externalRequest())
	assert.True(t, model.IsIntegrationError(err))
}

func TestDispatcherCancel(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(DispatcherConfig{Runner: &fakeRunner{block: true}, Command: "dtquery"})
	req := externalRequest()

	errCh := make(chan error, 1)
	go func() {
		_, err := d.Run(context.Background(), req)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return len(d.RunningQueries()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{req.OutputPath}, d.RunningQueries())
	assert.False(t, d.Cancel("/data/other.csv"))
	assert.True(t, d.Cancel(req.OutputPath))

	select {
	case err := <-errCh:
		var qerr *model.QueryError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, model.NewIntegrationError("query was cancelled"), qerr)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Empty(t, d.RunningQueries())
	assert.False(t, d.Provenance().IsResult(req.OutputPath))
}

func TestDispatcherLogsRuns(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d := NewDispatcher(DispatcherConfig{
		Runner:  &fakeRunner{events: []ProcessEvent{stderrEvent("boom"), exitEvent(1)}},
		Command: "dtquery",
		Logger:  slog.New(slog.NewJSONHandler(&buf, nil)),
	})
	_, err := d.Run(context.Background(), externalRequest())
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"query started"`)
	assert.Contains(t, out, `"msg":"query failed"`)
	assert.Contains(t, out, `"backend":"external"`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestResolveOutputDialect(t *testing.T) {
	t.Parallel()

	input := model.NewDialect("|", model.PolicySimple)
	assert.Equal(t, input, ResolveOutputDialect(model.OutputSameAsInput, input))
	assert.Equal(t, model.NewDialect(",", model.PolicyQuoted), ResolveOutputDialect(model.OutputCSV, input))
	assert.Equal(t, model.NewDialect("\t", model.PolicySimple), ResolveOutputDialect(model.OutputTSV, input))
	assert.Equal(t, model.Dialect{}, ResolveOutputDialect(model.OutputParquet, input))
	assert.Equal(t, model.Dialect{}, ResolveOutputDialect(model.OutputXLSX, input))
}

func TestDefaultOutputPath(t *testing.T) {
	t.Parallel()

	tmp := os.TempDir()
	tests := []struct {
		input  string
		format model.OutputFormat
		want   string
	}{
		{input: "/data/Sales.csv.gz", format: model.OutputSameAsInput, want: "Sales_result.csv"},
		{input: "/data/x.tsv", format: model.OutputParquet, want: "x_result.parquet"},
		{input: "/data/notes", format: model.OutputSameAsInput, want: "notes_result.txt"},
		{input: "untitled:Untitled-1", format: model.OutputCSV, want: "untitled_result.csv"},
		{input: "/data/report.txt", format: model.OutputXLSX, want: "report_result.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, filepath.Join(tmp, tt.want), DefaultOutputPath(tt.input, tt.format))
		})
	}
}

func TestParseBackendID(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "in-process", "InProcess"} {
		got, err := ParseBackendID(s)
		require.NoError(t, err)
		assert.Equal(t, BackendInProcess, got)
	}

	got, err := ParseBackendID("external")
	require.NoError(t, err)
	assert.Equal(t, BackendExternal, got)
	assert.Equal(t, "external", got.String())

	_, err = ParseBackendID("sparql")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReportMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "IO handling: disk full", NewErrorReport("IO handling", "disk full").Message())
	assert.Equal(t, "disk full", NewErrorReport("", "disk full").Message())
	assert.Equal(t, "unknown error", NewErrorReport("", "").Message())
	assert.True(t, NewErrorReport("", "").Failed())
	assert.False(t, Report{Warnings: []string{"x"}}.Failed())
}
