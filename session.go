package delimtext

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nao1215/delimtext/domain/model"
)

// Session owns the state a host keeps across calls: remembered dialects, cached
// lint reports, result provenance and running queries. Create one per host with
// NewBuilder. Safe for concurrent use.
type Session struct {
	detect     DetectOptions
	logger     *slog.Logger
	provenance *ResultProvenance
	dispatcher *Dispatcher

	mu       sync.Mutex
	dialects map[string]model.Dialect
	lints    map[string]lintEntry
}

type lintEntry struct {
	dialect model.Dialect
	report  LintReport
}

func newSession(detect DetectOptions, logger *slog.Logger, provenance *ResultProvenance, dispatcher *Dispatcher) *Session {
	return &Session{
		detect:     detect,
		logger:     logger,
		provenance: provenance,
		dispatcher: dispatcher,
		dialects:   make(map[string]model.Dialect),
		lints:      make(map[string]lintEntry),
	}
}

func documentKey(path string) string {
	return strings.ToLower(path)
}

// DetectOptions returns the detection settings of the session.
func (s *Session) DetectOptions() DetectOptions {
	return s.detect
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Provenance returns the result provenance map.
func (s *Session) Provenance() *ResultProvenance {
	return s.provenance
}

// Dispatcher returns the query dispatcher.
func (s *Session) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// AutodetectDialect returns the dialect of the document at path.
//
// A dialect remembered for path is returned as is. Result tables are never
// detected: they report their remembered dialect or nothing. Otherwise the
// structural pass runs, then the frequency fallback when the extension mandates
// a dialect, and a detected dialect is remembered until InvalidateDocument.
func (s *Session) AutodetectDialect(path string, src TextSource) (model.Dialect, bool) {
	key := documentKey(path)
	s.mu.Lock()
	d, ok := s.dialects[key]
	s.mu.Unlock()
	if ok {
		return d, true
	}
	if s.provenance.IsResult(path) {
		s.logger.Debug("autodetect skipped for result table", slog.String("path", path))
		return model.Dialect{}, false
	}

	d, ok = DetectDialect(path, src, s.detect)
	if !ok {
		s.logger.Debug("no dialect detected", slog.String("path", path), slog.Int("lines", src.LineCount()))
		return model.Dialect{}, false
	}
	s.logger.Debug("dialect detected", slog.String("path", path), slog.String("dialect", d.String()))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialects[key] = d
	return d, true
}

// SetDialect remembers an explicit dialect choice for path.
func (s *Session) SetDialect(path string, d model.Dialect) {
	key := documentKey(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialects[key] = d
	delete(s.lints, key)
}

// Dialect returns the dialect remembered for path.
func (s *Session) Dialect(path string) (model.Dialect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dialects[documentKey(path)]
	return d, ok
}

// InvalidateDocument forgets what the session derived from the content of path.
// Call it when the document is edited.
func (s *Session) InvalidateDocument(path string) {
	key := documentKey(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dialects, key)
	delete(s.lints, key)
}

// Lint checks src under d, caching the report per path and dialect.
func (s *Session) Lint(path string, src TextSource, d model.Dialect) LintReport {
	key := documentKey(path)
	s.mu.Lock()
	entry, ok := s.lints[key]
	s.mu.Unlock()
	if ok && entry.dialect.Equal(d) {
		return entry.report
	}

	report := Lint(src, d, s.detect.CommentPrefix)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lints[key] = lintEntry{dialect: d, report: report}
	return report
}

// Align lines up the columns of src using the configured comment prefix.
func (s *Session) Align(src TextSource, d model.Dialect) (string, bool, *model.QuoteError) {
	return Align(src, d, s.detect.CommentPrefix)
}

// Shrink strips field padding from src using the configured comment prefix.
func (s *Session) Shrink(src TextSource, d model.Dialect) (string, bool, *model.QuoteError) {
	return Shrink(src, d, s.detect.CommentPrefix)
}

// Run executes a query and remembers the dialect of a delimited result.
func (s *Session) Run(ctx context.Context, req QueryRequest) (*model.QueryResult, error) {
	result, err := s.dispatcher.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if result.OutputFormat.IsDelimited() {
		s.SetDialect(result.OutputPath, result.OutputDialect)
	} else {
		s.InvalidateDocument(result.OutputPath)
	}
	return result, nil
}

// RunningQueries returns the output paths of queries in progress.
func (s *Session) RunningQueries() []string {
	return s.dispatcher.RunningQueries()
}

// CancelQuery stops the query writing to output. It reports whether one was running.
func (s *Session) CancelQuery(output string) bool {
	cancelled := s.dispatcher.Cancel(output)
	if cancelled {
		s.logger.Info("query cancelled", slog.String("output", output))
	}
	return cancelled
}

// CopyResultToSource overwrites the source table of output with output and
// returns the source path. The source must exist and not be a scratch buffer.
func (s *Session) CopyResultToSource(output string) (string, error) {
	target, ok := s.provenance.CopyBackTarget(output)
	if !ok {
		return "", NewErrorContext("copy result", output).Error(ErrNoSource)
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case model.OutputParquet.Extension(), model.OutputXLSX.Extension():
		return "", NewErrorContext("copy result", output).
			WithDetails("binary result cannot replace a text table").Error(ErrBinaryResult)
	}

	if err := copyFile(output, target); err != nil {
		return "", NewErrorContext("copy result", output).WithDetails("target: " + target).Error(err)
	}
	s.InvalidateDocument(target)
	s.logger.Info("result copied to source", slog.String("output", output), slog.String("source", target))
	return target, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // result path recorded by the dispatcher
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := os.Stat(dst)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()) //nolint:gosec // source path recorded by the dispatcher
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
