package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"segrun/internal/collect"
	"segrun/internal/fileutil"
	"segrun/internal/frames"
	"segrun/internal/imaging"
	"segrun/internal/labels"
	"segrun/internal/logging"
	"segrun/internal/partition"
	"segrun/internal/progress"
	"segrun/internal/reposition"
	"segrun/internal/segtool"
	"segrun/internal/services"
	"segrun/internal/worker"
)

// Options configures a Detector.
type Options struct {
	Volume *imaging.Volume
	// Interval selects the region to process; nil processes everything.
	Interval *imaging.Interval
	Profile  segtool.Profile
	Settings segtool.Settings
	Policy   partition.Policy
	Observer progress.Observer
	Logger   *slog.Logger
	Executor worker.Executor
	// Labels converts the collected masks; nil uses labels.CentroidDetector.
	Labels labels.Detector
	Namer  frames.Namer

	TempRoot string
	// LogFile is the tool log to watch; empty uses the profile's run.log.
	LogFile        string
	PollInterval   time.Duration
	Grace          time.Duration
	Timeout        time.Duration
	FailOnExitCode bool
	ForwardOutput  bool
	// MaskDir receives a copy of every mask the tool wrote, named after the
	// source timepoint, before the temp dirs are removed.
	MaskDir string
}

// Outcome is the result of a successful run.
type Outcome struct {
	RunID   string
	Objects []labels.Object
	Stack   *imaging.LabelStack
	Report  collect.Report
	Buckets int
	Elapsed time.Duration
	// MaskFiles lists the masks exported to Options.MaskDir.
	MaskFiles []string
}

// Detector runs the tool over one volume. A Detector processes at most one
// run at a time.
type Detector struct {
	opts     Options
	interval imaging.Interval
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	canceled bool
	pending  bool
	reason   string
	errMsg   string
	elapsed  time.Duration
	stop     context.CancelFunc
}

// New validates opts and returns a Detector.
func New(opts Options) (*Detector, error) {
	if opts.Volume == nil {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "", "image is nil", nil)
	}
	if opts.Profile.Name == "" {
		return nil, services.Wrap(services.ErrConfiguration, "orchestrator", "", "tool profile is not set", nil)
	}
	opts.Profile = opts.Settings.MaskProfile(opts.Profile)
	if err := opts.Settings.Validate(opts.Profile); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "orchestrator", "settings", "", err)
	}
	if err := frames.CheckDepth(opts.Volume, opts.Profile.Only2D); err != nil {
		return nil, err
	}
	interval := imaging.FullInterval(opts.Volume)
	if opts.Interval != nil {
		interval = *opts.Interval
	}
	if err := interval.Validate(opts.Volume); err != nil {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "interval", "", err)
	}
	if opts.Observer == nil {
		opts.Observer = progress.Discard{}
	}
	if opts.Labels == nil {
		opts.Labels = labels.CentroidDetector{}
	}
	if opts.Executor == nil {
		opts.Executor = worker.CommandExecutor{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{
		opts:     opts,
		interval: interval,
		logger: logging.NewComponentLogger(logger, "orchestrator").With(
			logging.String(logging.FieldTool, opts.Profile.Name),
		),
	}, nil
}

// Name is the prefix of every error message, e.g. "CellposeDetector".
func (d *Detector) Name() string {
	return d.opts.Profile.DisplayName() + "Detector"
}

// Cancel stops the run. Live tool processes are terminated and buckets that
// have not launched never will. Called between runs, it cancels the next
// Process call only.
func (d *Detector) Cancel(reason string) {
	d.mu.Lock()
	d.canceled = true
	d.reason = reason
	d.pending = !d.running
	stop := d.stop
	d.mu.Unlock()
	d.logger.Info("run cancel requested", logging.String("reason", reason))
	if stop != nil {
		stop()
	}
}

// IsCanceled reports whether the current or last run was canceled.
func (d *Detector) IsCanceled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canceled
}

// CancelReason returns the reason passed to Cancel.
func (d *Detector) CancelReason() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// ErrorMessage returns the message of the last failed run, or "".
func (d *Detector) ErrorMessage() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errMsg
}

// ProcessingTime returns the wall time of the last successful run.
func (d *Detector) ProcessingTime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elapsed
}

// Process runs the whole pipeline.
func (d *Detector) Process(ctx context.Context) (Outcome, error) {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return Outcome{}, errors.New(d.Name() + ": a run is already in progress")
	}
	d.running = true
	d.errMsg = ""
	d.stop = stop
	canceled := d.pending
	d.pending = false
	if !canceled {
		d.canceled = false
		d.reason = ""
	}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.stop = nil
		d.mu.Unlock()
	}()

	runID := uuid.NewString()
	runCtx = services.WithRunID(runCtx, runID)
	logger := logging.WithContext(runCtx, d.logger)
	out := Outcome{RunID: runID}

	if canceled {
		return out, d.canceledErr(nil)
	}

	start := time.Now()
	obs := d.opts.Observer
	defer obs.SetStatus("")

	split, err := frames.Split(d.opts.Volume, d.interval, d.opts.Namer)
	if err != nil {
		return out, d.fail(logger, err)
	}

	policy := d.opts.Policy
	if policy.NumThreads <= 0 {
		policy.NumThreads = partition.DefaultNumThreads(runCtx)
	}
	buckets := partition.RoundRobin(split, partition.Degree(policy))
	out.Buckets = len(buckets)
	logger.Info("run started",
		logging.Int("frames", len(split)),
		logging.Int("buckets", len(buckets)),
		logging.String("model", d.opts.Settings.Model.String()),
		logging.Bool("simplify_contours", d.opts.Settings.SimplifyContours),
	)

	monitor := progress.NewMonitor(d.logFile(logger), obs,
		progress.WithInterval(d.opts.PollInterval),
		progress.WithLogger(logger),
	)
	if err := monitor.Start(runCtx); err != nil {
		logger.Warn("progress monitor not started", logging.Error(err))
	}
	obs.SetStatus("Saving single time-points")

	tasks := make([]*worker.Task, len(buckets))
	results := make([]worker.Result, len(buckets))
	defer func() {
		for _, t := range tasks {
			if t != nil {
				t.Cleanup()
			}
		}
	}()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(max(len(buckets), 1))
	for i, b := range buckets {
		task := worker.NewTask(worker.Options{
			Bucket:         b,
			Profile:        d.opts.Profile,
			Settings:       d.opts.Settings,
			Executor:       d.opts.Executor,
			TempRoot:       d.opts.TempRoot,
			Logger:         logger,
			Status:         obs.SetStatus,
			ForwardOutput:  d.opts.ForwardOutput,
			Grace:          d.opts.Grace,
			Timeout:        d.opts.Timeout,
			FailOnExitCode: d.opts.FailOnExitCode,
		})
		tasks[i] = task
		g.Go(func() error {
			res := task.Run(services.WithBucket(gctx, b.Index))
			results[i] = res
			if errors.Is(res.Err, services.ErrResource) {
				return res.Err
			}
			return nil
		})
	}
	joinErr := g.Wait()
	monitor.Stop()

	if d.IsCanceled() || ctx.Err() != nil {
		return out, d.canceledErr(ctx.Err())
	}
	if joinErr != nil {
		return out, d.fail(logger, joinErr)
	}

	dirs := make([]string, 0, len(results))
	var failures []error
	for _, res := range results {
		if !res.OK() {
			logger.Error("bucket failed",
				logging.Int(logging.FieldBucket, res.Bucket),
				logging.String("state", res.State.String()),
				logging.Error(res.Err),
			)
			failures = append(failures, res.Err)
			continue
		}
		dirs = append(dirs, res.OutputDir)
	}
	if len(failures) > 0 {
		return out, d.fail(logger, failures[0])
	}

	obs.SetStatus("Reading " + d.opts.Profile.DisplayName() + " masks")
	stack, report, err := collect.Collect(services.WithStage(runCtx, "collect"), split, dirs, collect.Options{
		Profile: d.opts.Profile,
		Source:  d.opts.Volume,
		Logger:  logger,
	})
	if err != nil {
		return out, d.failOrCancel(ctx, logger, err)
	}
	out.Stack = stack
	out.Report = report
	if d.opts.MaskDir != "" {
		out.MaskFiles = d.exportMasks(logger, split, report)
	}

	obs.SetStatus("Converting masks to objects")
	objs, err := d.opts.Labels.Detect(services.WithStage(runCtx, "detect"), stack)
	if err != nil {
		if !errors.Is(err, services.ErrDetection) && !errors.Is(err, services.ErrCanceled) {
			err = fmt.Errorf("%w: %w", services.ErrDetection, err)
		}
		return out, d.failOrCancel(ctx, logger, err)
	}

	out.Objects = reposition.Apply(objs, reposition.NewShift(d.opts.Volume, d.interval))
	out.Elapsed = time.Since(start)

	d.mu.Lock()
	d.elapsed = out.Elapsed
	d.mu.Unlock()

	missing := make([]int, 0, len(report.Missing))
	for _, local := range report.Missing {
		missing = append(missing, split[local].Global)
	}
	logger.Info("run finished",
		logging.Int("objects", len(out.Objects)),
		logging.Frames("missing_frames", missing),
		logging.Duration("elapsed", out.Elapsed),
	)
	return out, nil
}

func (d *Detector) exportMasks(logger *slog.Logger, split []frames.Frame, report collect.Report) []string {
	var srcs, names []string
	for _, f := range split {
		if src, ok := report.Files[f.Local]; ok {
			srcs = append(srcs, src)
			names = append(names, d.opts.Profile.MaskFileName(f.Global))
		}
	}
	copied, err := fileutil.Export(d.opts.MaskDir, srcs, func(i int, _ string) string { return names[i] })
	if err != nil {
		logging.WarnWithContext(logger, "mask export incomplete", "mask_export_failed",
			logging.Error(err),
			logging.String("dir", d.opts.MaskDir),
			logging.Int("exported", len(copied)),
			logging.String(logging.FieldImpact, "objects are still reported"),
		)
	}
	return copied
}

func (d *Detector) logFile(logger *slog.Logger) string {
	if d.opts.LogFile != "" {
		return d.opts.LogFile
	}
	path, err := d.opts.Profile.LogFile()
	if err != nil {
		logger.Warn("tool log location unknown", logging.Error(err))
	}
	return path
}

func (d *Detector) failOrCancel(ctx context.Context, logger *slog.Logger, err error) error {
	if d.IsCanceled() || ctx.Err() != nil || errors.Is(err, services.ErrCanceled) {
		return d.canceledErr(ctx.Err())
	}
	return d.fail(logger, err)
}

func (d *Detector) fail(logger *slog.Logger, err error) error {
	msg := d.Name() + ": " + strings.TrimSpace(err.Error())
	d.mu.Lock()
	d.errMsg = msg
	d.mu.Unlock()
	logging.ErrorWithContext(logger, "run failed", "run_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(err)),
	)
	return fmt.Errorf("%s: %w", d.Name(), err)
}

func (d *Detector) canceledErr(cause error) error {
	reason := d.CancelReason()
	if reason == "" && cause != nil {
		reason = cause.Error()
	}
	d.logger.Info("run canceled", logging.String("reason", reason))
	if reason == "" {
		return fmt.Errorf("%s: %w", d.Name(), services.ErrCanceled)
	}
	return fmt.Errorf("%s: %w: %s", d.Name(), services.ErrCanceled, reason)
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrResource):
		return "check free space and permissions of the temp directory"
	case errors.Is(err, services.ErrLaunch):
		return "run 'segrun deps' to check the tool executable"
	case errors.Is(err, services.ErrDetection):
		return "inspect the collected masks for invalid labels"
	case errors.Is(err, services.ErrValidation):
		return "check the processing interval against the image"
	default:
		return "see the tool output in the log for details"
	}
}
