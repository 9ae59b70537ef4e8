package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"segrun/internal/imaging"
	"segrun/internal/logging"
	"segrun/internal/partition"
	"segrun/internal/segtool"
	"segrun/internal/services"
)

// Options configures a Task.
type Options struct {
	Bucket   partition.Bucket
	Profile  segtool.Profile
	Settings segtool.Settings
	Executor Executor
	// TempRoot is the parent of the bucket's temp directory; empty uses the
	// system default.
	TempRoot string
	Logger   *slog.Logger
	// Status receives short human-readable status updates.
	Status func(string)
	// ForwardOutput routes tool output to the logger instead of inheriting
	// the parent's stdout/stderr.
	ForwardOutput bool
	Grace         time.Duration
	// Timeout bounds the tool process; zero waits indefinitely.
	Timeout time.Duration
	// FailOnExitCode marks the bucket failed when the tool exits non-zero.
	FailOnExitCode bool
}

// Result is the outcome of one bucket.
type Result struct {
	Bucket    int
	State     State
	OutputDir string
	ExitCode  int
	Err       error
}

// OK reports whether the bucket completed.
func (r Result) OK() bool { return r.State == StateCompleted && r.Err == nil }

// Task processes one bucket.
type Task struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	state State
	dir   string
}

// NewTask constructs a task in the Created state.
func NewTask(opts Options) *Task {
	if opts.Executor == nil {
		opts.Executor = CommandExecutor{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Task{
		opts:   opts,
		logger: logger.With(logging.Int(logging.FieldBucket, opts.Bucket.Index)),
		state:  StateCreated,
	}
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Dir returns the task's temp directory, empty before it is created or after
// cleanup.
func (t *Task) Dir() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir
}

func (t *Task) transition(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	t.logger.Debug("worker state changed", logging.String("state", s.String()))
}

// Cleanup removes the temp directory. It is safe to call more than once and
// from any exit path.
func (t *Task) Cleanup() {
	t.mu.Lock()
	dir := t.dir
	t.dir = ""
	t.mu.Unlock()
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		t.logger.Warn("failed to remove worker temp dir",
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldEventType, "temp_cleanup_failed"),
		)
	}
}

// Run executes the bucket. The returned directory stays on disk until
// Cleanup is called so that masks can be collected after every bucket has
// finished; on failure or cancellation Run removes it before returning.
func (t *Task) Run(ctx context.Context) (res Result) {
	res = Result{Bucket: t.opts.Bucket.Index, ExitCode: -1}
	defer func() {
		if !res.OK() {
			t.Cleanup()
		}
	}()

	if err := ctx.Err(); err != nil {
		return t.cancelled(res, err)
	}

	dir, err := t.makeTempDir()
	if err != nil {
		res.State = StateFailed
		res.Err = services.Wrap(services.ErrResource, "worker", "temp dir",
			"Could not create tmp dir to save and load images", err)
		t.transition(StateFailed)
		return res
	}
	t.transition(StateTempDirReady)

	t.logger.Info("saving single time-points",
		logging.Frames("frames", t.opts.Bucket.Globals()),
		logging.String("dir", dir),
	)
	for _, f := range t.opts.Bucket.Frames {
		if err := ctx.Err(); err != nil {
			return t.cancelled(res, err)
		}
		if err := imaging.WriteFrame(filepath.Join(dir, f.FileName()), f.Plane); err != nil {
			res.State = StateFailed
			res.Err = services.Wrap(services.ErrResource, "worker", "write frame", f.FileName(), err)
			t.transition(StateFailed)
			return res
		}
	}
	t.transition(StateFramesWritten)

	if err := ctx.Err(); err != nil {
		return t.cancelled(res, err)
	}

	argv := t.opts.Settings.CommandLine(t.opts.Profile, dir)
	t.status("Running " + t.opts.Profile.DisplayName())
	t.logger.Info("running segmentation tool",
		logging.String("tool", t.opts.Profile.Name),
		logging.String("args", strings.Join(argv, " ")),
	)

	runCtx := ctx
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	runOpts := RunOptions{Grace: t.opts.Grace}
	if t.opts.ForwardOutput {
		runOpts.OnOutput = func(line string) {
			t.logger.Debug(line, logging.String("source", t.opts.Profile.Name))
		}
	}

	t.transition(StateProcessRunning)
	started := time.Now()
	code, err := t.opts.Executor.Run(runCtx, argv, runOpts)
	res.ExitCode = code
	if err != nil {
		var launchErr *LaunchError
		switch {
		case errors.As(err, &launchErr):
			res.State = StateFailed
			res.Err = t.launchError(launchErr)
			t.transition(StateFailed)
			return res
		case ctx.Err() != nil:
			return t.cancelled(res, ctx.Err())
		case errors.Is(err, context.DeadlineExceeded):
			res.State = StateFailed
			res.Err = services.Wrap(services.ErrExternalTool, "worker", "run",
				fmt.Sprintf("%s did not finish within %s", t.opts.Profile.DisplayName(), t.opts.Timeout), err)
			t.transition(StateFailed)
			return res
		default:
			res.State = StateFailed
			res.Err = services.Wrap(services.ErrExternalTool, "worker", "run",
				"Problem running "+t.opts.Profile.DisplayName(), err)
			t.transition(StateFailed)
			return res
		}
	}

	t.logger.Info("segmentation tool finished",
		logging.Int("exit_code", code),
		logging.Duration("elapsed", time.Since(started)),
	)
	if code != 0 {
		if t.opts.FailOnExitCode {
			res.State = StateFailed
			res.Err = services.Wrap(services.ErrExternalTool, "worker", "run",
				fmt.Sprintf("%s exited with status %d", t.opts.Profile.DisplayName(), code), nil)
			t.transition(StateFailed)
			return res
		}
		t.logger.Warn("segmentation tool exited with non-zero status",
			logging.Int("exit_code", code),
			logging.String(logging.FieldEventType, "tool_exit_nonzero"),
			logging.String(logging.FieldErrorHint, "missing masks will be replaced by blank frames"),
		)
	}

	res.State = StateCompleted
	res.OutputDir = dir
	t.transition(StateCompleted)
	return res
}

func (t *Task) makeTempDir() (string, error) {
	root := t.opts.TempRoot
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", err
		}
	}
	dir, err := os.MkdirTemp(root, "segrun-"+t.opts.Profile.Name+"_")
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	t.dir = dir
	t.mu.Unlock()
	return dir, nil
}

func (t *Task) cancelled(res Result, cause error) Result {
	res.State = StateCancelled
	res.Err = fmt.Errorf("%w: bucket %d: %w", services.ErrCanceled, t.opts.Bucket.Index, cause)
	t.transition(StateCancelled)
	return res
}

func (t *Task) launchError(err *LaunchError) error {
	name := t.opts.Profile.DisplayName()
	if isPermissionDenied(err.Err) {
		msg := "Problem running " + name + ":\nThe executable does not have the file permission to run."
		if t.opts.Profile.HelpURL != "" {
			msg += "\nPlease see " + t.opts.Profile.HelpURL + " for more information."
		}
		return services.Wrap(services.ErrLaunch, "", "", msg, err)
	}
	return services.Wrap(services.ErrLaunch, "", "", "Problem running "+name, err)
}

func (t *Task) status(msg string) {
	if t.opts.Status != nil {
		t.opts.Status(msg)
	}
}
