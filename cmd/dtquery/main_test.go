package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/delimtext"
	"github.com/nao1215/delimtext/domain/model"
	"github.com/nao1215/delimtext/engine"
)

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func decode(t *testing.T, stdout []byte) delimtext.Report {
	t.Helper()
	var report delimtext.Report
	require.NoError(t, json.Unmarshal(stdout, &report))
	return report
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("success prints one report", func(t *testing.T) {
		t.Parallel()
		input := writeTable(t, "id,name\n1,alice\n2,bob\n")
		output := filepath.Join(filepath.Dir(input), "out.tsv")

		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{
			"--query", "SELECT name FROM data WHERE id = 2",
			"--input", input,
			"--output", output,
			"--out-format", "tsv",
			"--skip-headers",
		}, &stdout, &stderr)

		assert.Equal(t, 0, code)
		assert.Empty(t, stderr.String())
		assert.Equal(t, "{}\n", stdout.String())

		data, err := os.ReadFile(output) //nolint:gosec // test path
		require.NoError(t, err)
		assert.Equal(t, "name\nbob\n", string(data))
	})

	t.Run("warnings are reported", func(t *testing.T) {
		t.Parallel()
		input := writeTable(t, "a,b\nc\n")

		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{
			"--query", "SELECT * FROM data",
			"--input", input,
			"--output", filepath.Join(filepath.Dir(input), "out.csv"),
		}, &stdout, &stderr)

		require.Equal(t, 0, code)
		report := decode(t, stdout.Bytes())
		assert.False(t, report.Failed())
		assert.Len(t, report.Warnings, 1)
	})

	t.Run("engine error is a report", func(t *testing.T) {
		t.Parallel()
		input := writeTable(t, "id\n1\n")

		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{
			"--query", "SELECT missing FROM data",
			"--input", input,
			"--output", filepath.Join(filepath.Dir(input), "out.csv"),
			"--skip-headers",
		}, &stdout, &stderr)

		assert.Equal(t, 0, code)
		assert.Empty(t, stderr.String())
		report := decode(t, stdout.Bytes())
		require.True(t, report.Failed())
		assert.Equal(t, engine.ErrorTypeQuery, *report.ErrorType)
		assert.Contains(t, *report.ErrorMsg, "missing")
	})

	t.Run("invalid flags", func(t *testing.T) {
		t.Parallel()

		tests := map[string][]string{
			"missing query":   {"--input", "x.csv"},
			"missing input":   {"--query", "SELECT 1"},
			"bad policy":      {"--query", "SELECT 1", "--input", "x.csv", "--policy", "loose"},
			"bad format":      {"--query", "SELECT 1", "--input", "x.csv", "--out-format", "json"},
			"bad encoding":    {"--query", "SELECT 1", "--input", "x.csv", "--encoding", "ebcdic"},
			"bad engine":      {"--query", "SELECT 1", "--input", "x.csv", "--engine", "oracle"},
			"extra arguments": {"--query", "SELECT 1", "--input", "x.csv", "extra"},
			"unknown flag":    {"--nope"},
		}
		for name, args := range tests {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), args, &stdout, &stderr)
			assert.Equal(t, 2, code, name)
			assert.Empty(t, stdout.String(), name)
			assert.NotEmpty(t, stderr.String(), name)
		}
	})
}

func TestDialectFromFlags(t *testing.T) {
	t.Parallel()

	d, err := dialectFromFlags(";", "")
	require.NoError(t, err)
	assert.Equal(t, model.NewDialect(";", model.PolicyQuoted), d)

	d, err = dialectFromFlags("", "monocolumn")
	require.NoError(t, err)
	assert.Equal(t, model.Monocolumn(), d)

	_, err = dialectFromFlags("", "simple")
	require.Error(t, err)
}

// inProcessRunner runs dtquery in the test process and streams its output the
// way ExecRunner streams a subprocess.
type inProcessRunner struct{}

func (inProcessRunner) Start(ctx context.Context, _ string, args ...string) <-chan delimtext.ProcessEvent {
	events := make(chan delimtext.ProcessEvent, 3)
	go func() {
		defer close(events)
		var stdout, stderr bytes.Buffer
		code := run(ctx, args, &stdout, &stderr)
		if stdout.Len() > 0 {
			events <- delimtext.ProcessEvent{Kind: delimtext.ProcessStdout, Data: stdout.Bytes()}
		}
		if stderr.Len() > 0 {
			events <- delimtext.ProcessEvent{Kind: delimtext.ProcessStderr, Data: stderr.Bytes()}
		}
		events <- delimtext.ProcessEvent{Kind: delimtext.ProcessExit, ExitCode: code}
	}()
	return events
}

func TestDispatcherContract(t *testing.T) {
	t.Parallel()

	d := delimtext.NewDispatcher(delimtext.DispatcherConfig{
		Runner:  inProcessRunner{},
		Command: "dtquery",
	})
	input := writeTable(t, "id;city\n1;Oslo\n2;Lima\n")
	req := delimtext.QueryRequest{
		Query:        "SELECT city FROM data ORDER BY id DESC",
		InputPath:    input,
		OutputPath:   filepath.Join(filepath.Dir(input), "data_result.csv"),
		InputDialect: model.NewDialect(";", model.PolicyQuoted),
		OutputFormat: model.OutputSameAsInput,
		Backend:      delimtext.BackendExternal,
		SkipHeaders:  true,
	}

	result, err := d.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, model.NewDialect(";", model.PolicyQuoted), result.OutputDialect)
	data, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "city\nLima\nOslo\n", string(data))

	req.Query = "SELECT nope FROM data"
	_, err = d.Run(context.Background(), req)
	assert.True(t, model.IsEngineError(err))
	assert.Contains(t, err.Error(), engine.ErrorTypeQuery)
}
