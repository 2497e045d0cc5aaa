package delimtext

import (
	"context"
	"errors"
	"io"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// ProcessEventKind identifies a ProcessEvent.
type ProcessEventKind int

const (
	// ProcessStdout carries a chunk of standard output
	ProcessStdout ProcessEventKind = iota
	// ProcessStderr carries a chunk of standard error
	ProcessStderr
	// ProcessExit reports the exit code; terminal
	ProcessExit
	// ProcessError reports a failure to run or wait for the process; terminal
	ProcessError
)

// ProcessEvent is one observation of a running subprocess.
type ProcessEvent struct {
	Kind     ProcessEventKind
	Data     []byte
	ExitCode int
	Err      error
}

// Terminal reports whether the event ends the run.
func (e ProcessEvent) Terminal() bool {
	return e.Kind == ProcessExit || e.Kind == ProcessError
}

// CommandRunner spawns subprocesses. The returned channel delivers output
// chunks followed by at least one terminal event, and is closed when the runner
// is done with it. Consumers must drain it.
type CommandRunner interface {
	Start(ctx context.Context, name string, args ...string) <-chan ProcessEvent
}

// defaultChunkSize is the read size of subprocess pipes
const defaultChunkSize = 4096

// ExecRunner is a CommandRunner on os/exec. Cancelling ctx kills the process.
type ExecRunner struct {
	// ChunkSize is the pipe read size. Defaults to 4096 bytes.
	ChunkSize int
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{ChunkSize: defaultChunkSize}
}

// Start implements CommandRunner
func (r *ExecRunner) Start(ctx context.Context, name string, args ...string) <-chan ProcessEvent {
	events := make(chan ProcessEvent, 16)
	go func() {
		defer close(events)
		events <- r.run(ctx, name, args, events)
	}()
	return events
}

// run executes the command, streaming output to events, and returns the terminal event.
func (r *ExecRunner) run(ctx context.Context, name string, args []string, events chan<- ProcessEvent) ProcessEvent {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // the backend command is configured by the host
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ProcessEvent{Kind: ProcessError, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ProcessEvent{Kind: ProcessError, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return ProcessEvent{Kind: ProcessError, Err: err}
	}

	var g errgroup.Group
	g.Go(func() error { return r.pump(stdout, ProcessStdout, events) })
	g.Go(func() error { return r.pump(stderr, ProcessStderr, events) })
	readErr := g.Wait()
	waitErr := cmd.Wait()

	var exitErr *exec.ExitError
	switch {
	case readErr != nil:
		return ProcessEvent{Kind: ProcessError, Err: readErr}
	case waitErr == nil:
		return ProcessEvent{Kind: ProcessExit, ExitCode: 0}
	case errors.As(waitErr, &exitErr):
		return ProcessEvent{Kind: ProcessExit, ExitCode: exitErr.ExitCode()}
	default:
		return ProcessEvent{Kind: ProcessError, Err: waitErr}
	}
}

func (r *ExecRunner) pump(src io.Reader, kind ProcessEventKind, events chan<- ProcessEvent) error {
	size := r.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	buf := make([]byte, size)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			events <- ProcessEvent{Kind: kind, Data: chunk}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
