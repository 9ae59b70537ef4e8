package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// RunOptions controls how a tool process is started.
type RunOptions struct {
	// OnOutput receives stdout and stderr lines. When nil the process
	// inherits the parent's stdout and stderr.
	OnOutput func(string)
	// Grace is how long a cancelled process may take to exit after SIGTERM
	// before it is killed.
	Grace time.Duration
}

// Executor abstracts process execution for testability. Run blocks until the
// process exits. A non-zero exit status is reported through the exit code,
// not the error; the error is reserved for launch failures and cancellation.
type Executor interface {
	Run(ctx context.Context, argv []string, opts RunOptions) (int, error)
}

// DefaultGrace is used when RunOptions.Grace is not positive.
const DefaultGrace = 5 * time.Second

// LaunchError reports that the process could not be started at all.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string { return e.Err.Error() }

func (e *LaunchError) Unwrap() error { return e.Err }

// CommandExecutor runs tools with os/exec.
type CommandExecutor struct{}

func (CommandExecutor) Run(ctx context.Context, argv []string, opts RunOptions) (int, error) {
	if len(argv) == 0 {
		return -1, &LaunchError{Err: errors.New("empty command line")}
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	configureProcessGroup(cmd)
	cmd.WaitDelay = opts.Grace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultGrace
	}

	var lines *lineSink
	if opts.OnOutput != nil {
		lines = &lineSink{emit: opts.OnOutput}
		cmd.Stdout = lines.writer()
		cmd.Stderr = lines.writer()
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return -1, &LaunchError{Err: err}
	}

	waitErr := cmd.Wait()
	if lines != nil {
		lines.flush()
	}
	if ctx.Err() != nil {
		killProcessGroup(cmd)
		return exitCode(cmd), ctx.Err()
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		// the tool exited but a leftover child still held its output open
		killProcessGroup(cmd)
		waitErr = nil
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return exitCode(cmd), fmt.Errorf("wait command: %w", waitErr)
	}
	return exitCode(cmd), nil
}

const maxLineBytes = 1024 * 1024

// lineSink splits stdout and stderr into lines. exec copies each stream
// from its own goroutine, so emit calls are serialized here.
type lineSink struct {
	mu   sync.Mutex
	emit func(string)
	bufs []*bytes.Buffer
}

func (s *lineSink) writer() io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := &bytes.Buffer{}
	s.bufs = append(s.bufs, buf)
	return lineWriter{sink: s, buf: buf}
}

func (s *lineSink) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, buf := range s.bufs {
		if buf.Len() > 0 {
			s.emit(strings.TrimRight(buf.String(), "\r"))
			buf.Reset()
		}
	}
}

type lineWriter struct {
	sink *lineSink
	buf  *bytes.Buffer
}

func (w lineWriter) Write(p []byte) (int, error) {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the partial line unless it grew past the limit
			if len(line) >= maxLineBytes {
				w.sink.emit(line)
			} else {
				w.buf.WriteString(line)
			}
			break
		}
		w.sink.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}
