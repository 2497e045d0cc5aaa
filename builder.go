package delimtext

import (
	"context"
	"log/slog"
	"os"
	"slices"
)

// SessionBuilder configures a Session. Use NewBuilder to create one, chain the
// With methods, then call Build.
//
// The typical usage pattern is:
//
//	session, err := delimtext.NewBuilder().
//		WithCommentPrefix("#").
//		WithQueryEngine(engine.New(engine.DriverSQLite)).
//		Build(ctx)
//	if err != nil {
//		return err
//	}
//	dialect, ok := session.AutodetectDialect("data.csv", src)
type SessionBuilder struct {
	// candidates are the delimiters dialect detection tries, in priority order
	candidates []string
	// commentPrefix marks lines that are not records
	commentPrefix string
	// minLines is the fewest lines a document needs to be autodetected
	minLines int
	// minColumns is the fewest columns a detected dialect may have
	minColumns int
	// logger receives session and dispatcher events
	logger *slog.Logger
	// logLevel is used only when logger is nil
	logLevel *slog.Level
	// engine runs in-process queries
	engine QueryEngine
	// command runs external queries
	command     string
	commandArgs []string
	// runner spawns external queries
	runner CommandRunner
}

// NewBuilder creates a builder with the default detection settings and no backends.
// Lines starting with DefaultCommentPrefix are comments until WithCommentPrefix says otherwise.
func NewBuilder() *SessionBuilder {
	return &SessionBuilder{
		candidates:    slices.Clone(DefaultCandidateDelimiters),
		commentPrefix: DefaultCommentPrefix,
		minLines:      DefaultMinLines,
		minColumns:    DefaultMinColumns,
	}
}

// WithCandidateDelimiters replaces the delimiters dialect detection tries.
// Earlier candidates win ties.
func (b *SessionBuilder) WithCandidateDelimiters(delims ...string) *SessionBuilder {
	b.candidates = slices.Clone(delims)
	return b
}

// WithCommentPrefix sets the prefix of comment lines. Empty disables comments.
func (b *SessionBuilder) WithCommentPrefix(prefix string) *SessionBuilder {
	b.commentPrefix = prefix
	return b
}

// WithMinLines sets the fewest lines a document needs before autodetection runs.
func (b *SessionBuilder) WithMinLines(n int) *SessionBuilder {
	b.minLines = n
	return b
}

// WithMinColumns sets the fewest columns a detected dialect may have.
func (b *SessionBuilder) WithMinColumns(n int) *SessionBuilder {
	b.minColumns = n
	return b
}

// WithLogger sets the logger. Without one the session logs text to stderr.
func (b *SessionBuilder) WithLogger(logger *slog.Logger) *SessionBuilder {
	b.logger = logger
	return b
}

// WithLogLevel sets the level of the default logger. Ignored when WithLogger is used.
func (b *SessionBuilder) WithLogLevel(level slog.Level) *SessionBuilder {
	b.logLevel = &level
	return b
}

// WithQueryEngine sets the engine of BackendInProcess queries.
func (b *SessionBuilder) WithQueryEngine(engine QueryEngine) *SessionBuilder {
	b.engine = engine
	return b
}

// WithExternalCommand sets the executable of BackendExternal queries. args are
// passed before the query flags.
func (b *SessionBuilder) WithExternalCommand(command string, args ...string) *SessionBuilder {
	b.command = command
	b.commandArgs = slices.Clone(args)
	return b
}

// WithCommandRunner replaces the process runner of BackendExternal queries.
func (b *SessionBuilder) WithCommandRunner(runner CommandRunner) *SessionBuilder {
	b.runner = runner
	return b
}

// Build validates the configuration and creates a Session.
func (b *SessionBuilder) Build(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := newValidator()
	if err := v.validateCandidates(b.candidates); err != nil {
		return nil, NewErrorContext("build session", "").WithDetails(err.Error()).Error(ErrInvalidConfig)
	}
	if err := v.validateThresholds(b.minLines, b.minColumns); err != nil {
		return nil, NewErrorContext("build session", "").WithDetails(err.Error()).Error(ErrInvalidConfig)
	}
	if err := v.validateCommentPrefix(b.commentPrefix); err != nil {
		return nil, NewErrorContext("build session", "").WithDetails(err.Error()).Error(ErrInvalidConfig)
	}
	if b.command != "" && b.runner == nil {
		if err := v.validateCommand(b.command); err != nil {
			return nil, NewErrorContext("build session", b.command).WithDetails(err.Error()).Error(ErrInvalidConfig)
		}
	}

	logger := b.logger
	if logger == nil {
		level := slog.LevelInfo
		if b.logLevel != nil {
			level = *b.logLevel
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	provenance := NewResultProvenance()
	dispatcher := NewDispatcher(DispatcherConfig{
		Engine:      b.engine,
		Runner:      b.runner,
		Command:     b.command,
		CommandArgs: b.commandArgs,
		Provenance:  provenance,
		Logger:      logger,
	})

	return newSession(DetectOptions{
		Candidates:    slices.Clone(b.candidates),
		MinColumns:    b.minColumns,
		MinLines:      b.minLines,
		CommentPrefix: b.commentPrefix,
	}, logger, provenance, dispatcher), nil
}
