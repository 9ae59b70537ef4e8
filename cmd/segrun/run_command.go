package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"segrun/internal/config"
	"segrun/internal/history"
	"segrun/internal/imaging"
	"segrun/internal/logging"
	"segrun/internal/orchestrator"
	"segrun/internal/services"
)

type runFlags struct {
	channels      int
	slices        int
	frames        int
	timeRange     string
	zRange        string
	pixelSize     float64
	voxelDepth    float64
	frameInterval float64
	threads       int
	gpu           bool
	model         string
	objectsPath   string
	masksDir      string
	jsonOutput    bool
	quiet         bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <stack.tif>",
		Short: "Segment a TIFF stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return runSegmentation(cmd, cfg, logger, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.channels, "channels", 0, "Channels per timepoint in the TIFF page order")
	cmd.Flags().IntVar(&flags.slices, "slices", 0, "Z slices per timepoint in the TIFF page order")
	cmd.Flags().IntVar(&flags.frames, "frames", 0, "Timepoints in the TIFF (default: every page is a timepoint)")
	cmd.Flags().StringVar(&flags.timeRange, "time", "", "Inclusive timepoint range to segment, e.g. 3:10")
	cmd.Flags().StringVar(&flags.zRange, "z", "", "Inclusive Z range to segment, e.g. 0:4")
	cmd.Flags().Float64Var(&flags.pixelSize, "pixel-size", 1, "Physical XY pixel size")
	cmd.Flags().Float64Var(&flags.voxelDepth, "voxel-depth", 1, "Physical Z step")
	cmd.Flags().Float64Var(&flags.frameInterval, "frame-interval", 1, "Time between frames")
	cmd.Flags().IntVar(&flags.threads, "threads", -1, "Concurrent tool processes (default from config)")
	cmd.Flags().BoolVar(&flags.gpu, "gpu", false, "Run the tool on the GPU (single process)")
	cmd.Flags().StringVar(&flags.model, "model", "", "Pretrained model name, or \"custom\" with custom_model_path set")
	cmd.Flags().StringVarP(&flags.objectsPath, "output", "o", "", "Write detected objects as CSV to this path")
	cmd.Flags().StringVar(&flags.masksDir, "masks-dir", "", "Copy the tool's mask files to this directory")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the run summary as JSON")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Do not draw a progress bar")
	return cmd
}

type runSummary struct {
	RunID         string  `json:"run_id"`
	Source        string  `json:"source"`
	Tool          string  `json:"tool"`
	Model         string  `json:"model"`
	Frames        int     `json:"frames"`
	Buckets       int     `json:"buckets"`
	Objects       int     `json:"objects"`
	MissingFrames []int   `json:"missing_frames"`
	ElapsedSec    float64 `json:"elapsed_seconds"`
	ObjectsFile   string  `json:"objects_file,omitempty"`
	MaskFiles     int     `json:"mask_files,omitempty"`
}

func runSegmentation(cmd *cobra.Command, base *config.Config, logger *slog.Logger, source string, flags runFlags) error {
	cfg := applyRunFlags(*base, flags)

	profile, err := cfg.ToolProfile()
	if err != nil {
		return err
	}
	settings := cfg.ToolSettings(profile)

	sourcePath, err := config.ExpandPath(source)
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	vol, err := imaging.ReadVolume(sourcePath, imaging.StackLayout{
		Channels: flags.channels,
		Slices:   flags.slices,
		Frames:   flags.frames,
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "input", "read", "", err)
	}
	vol.SetScale(imaging.AxisX, flags.pixelSize)
	vol.SetScale(imaging.AxisY, flags.pixelSize)
	vol.SetScale(imaging.AxisZ, flags.voxelDepth)
	vol.SetScale(imaging.AxisTime, flags.frameInterval)

	interval, err := parseInterval(vol, flags.timeRange, flags.zRange)
	if err != nil {
		return services.Wrap(services.ErrValidation, "input", "interval", "", err)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, profile.Name+".lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another segrun run using %s is in progress (lock %s)", profile.DisplayName(), lockPath)
	}
	defer func() { _ = lock.Unlock() }()

	masksDir := ""
	if flags.masksDir != "" {
		if masksDir, err = config.ExpandPath(flags.masksDir); err != nil {
			return fmt.Errorf("resolve masks dir: %w", err)
		}
	}

	observer, finish := newRunObserver(cmd.ErrOrStderr(), flags.quiet || flags.jsonOutput, logger)
	det, err := orchestrator.New(orchestrator.Options{
		Volume:         vol,
		Interval:       &interval,
		Profile:        profile,
		Settings:       settings,
		Policy:         cfg.Policy(),
		Observer:       observer,
		Logger:         logger,
		TempRoot:       cfg.Paths.TempRoot,
		LogFile:        cfg.Progress.LogFile,
		PollInterval:   cfg.PollInterval(),
		Grace:          cfg.KillGrace(),
		Timeout:        cfg.WorkerTimeout(),
		FailOnExitCode: cfg.Worker.FailOnExitCode,
		ForwardOutput:  cfg.Worker.ForwardOutput,
		MaskDir:        masksDir,
	})
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	processed := make(chan struct{})
	go func() {
		select {
		case <-sigCtx.Done():
			det.Cancel("interrupted")
		case <-processed:
		}
	}()

	started := time.Now()
	out, runErr := det.Process(sigCtx)
	close(processed)
	finish()

	frameCount := 1
	if vol.Has(imaging.AxisTime) {
		frameCount = interval.T.Len()
	}
	recordRun(cmd.Context(), &cfg, logger, history.Run{
		RunID:         out.RunID,
		SourcePath:    sourcePath,
		Tool:          profile.Name,
		Model:         settings.Model.String(),
		Frames:        frameCount,
		Buckets:       out.Buckets,
		Objects:       len(out.Objects),
		MissingFrames: len(out.Report.Missing),
		Status:        services.FailureStatus(runErr),
		ErrorMessage:  det.ErrorMessage(),
		Elapsed:       time.Since(started),
		StartedAt:     started,
	})
	if runErr != nil {
		if errors.Is(runErr, services.ErrCanceled) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Run canceled (%s)\n", fallback(det.CancelReason(), "context done"))
		}
		return runErr
	}

	summary := runSummary{
		RunID:         out.RunID,
		Source:        sourcePath,
		Tool:          profile.DisplayName(),
		Model:         settings.Model.String(),
		Frames:        frameCount,
		Buckets:       out.Buckets,
		Objects:       len(out.Objects),
		MissingFrames: append([]int{}, out.Report.Missing...),
		ElapsedSec:    out.Elapsed.Seconds(),
		MaskFiles:     len(out.MaskFiles),
	}
	if flags.objectsPath != "" {
		target, err := config.ExpandPath(flags.objectsPath)
		if err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
		if err := writeObjectsCSV(target, out.Objects); err != nil {
			return err
		}
		summary.ObjectsFile = target
	}

	if flags.jsonOutput {
		return writeJSON(cmd, summary)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderRunSummary(summary))
	return nil
}

func applyRunFlags(cfg config.Config, flags runFlags) config.Config {
	if flags.threads >= 0 {
		cfg.Concurrency.NumThreads = flags.threads
	}
	if flags.gpu {
		cfg.Tool.UseGPU = true
	}
	if m := strings.TrimSpace(flags.model); m != "" {
		cfg.Tool.Model = m
	}
	return cfg
}

func renderRunSummary(s runSummary) string {
	missing := "none"
	if len(s.MissingFrames) > 0 {
		parts := make([]string, len(s.MissingFrames))
		for i, f := range s.MissingFrames {
			parts[i] = strconv.Itoa(f)
		}
		missing = strings.Join(parts, ", ")
	}
	pairs := [][2]string{
		{"Run", s.RunID},
		{"Source", s.Source},
		{"Tool", s.Tool + " (" + s.Model + ")"},
		{"Frames", plural(s.Frames, "frame") + " in " + plural(s.Buckets, "process")},
		{"Objects", strconv.Itoa(s.Objects)},
		{"Missing masks", missing},
		{"Elapsed", formatElapsed(time.Duration(s.ElapsedSec * float64(time.Second)))},
	}
	if s.MaskFiles > 0 {
		pairs = append(pairs, [2]string{"Masks exported", strconv.Itoa(s.MaskFiles)})
	}
	if s.ObjectsFile != "" {
		pairs = append(pairs, [2]string{"Objects file", s.ObjectsFile})
	}
	return renderKeyValues(pairs)
}

// parseInterval restricts the full volume to the --time and --z ranges.
func parseInterval(vol *imaging.Volume, timeRange, zRange string) (imaging.Interval, error) {
	iv := imaging.FullInterval(vol)
	if strings.TrimSpace(timeRange) != "" {
		if !vol.Has(imaging.AxisTime) {
			return iv, errors.New("--time given but the image has a single timepoint")
		}
		r, err := parseRange(timeRange)
		if err != nil {
			return iv, fmt.Errorf("--time: %w", err)
		}
		iv.T = r
	}
	if strings.TrimSpace(zRange) != "" {
		if !vol.Has(imaging.AxisZ) {
			return iv, errors.New("--z given but the image has a single slice")
		}
		r, err := parseRange(zRange)
		if err != nil {
			return iv, fmt.Errorf("--z: %w", err)
		}
		iv.Z = r
	}
	return iv, iv.Validate(vol)
}

func parseRange(value string) (imaging.Range, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(value), ":")
	minV, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return imaging.Range{}, fmt.Errorf("invalid range %q", value)
	}
	maxV := minV
	if found {
		if maxV, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return imaging.Range{}, fmt.Errorf("invalid range %q", value)
		}
	}
	if maxV < minV {
		return imaging.Range{}, fmt.Errorf("range %q is reversed", value)
	}
	return imaging.Range{Min: minV, Max: maxV}, nil
}

// recordRun appends the run to the history ledger. Ledger problems are
// logged and never fail the run.
func recordRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, run history.Run) {
	if !cfg.History.Enabled || cfg.Paths.HistoryDB == "" || run.RunID == "" {
		return
	}
	store, err := history.Open(ctx, cfg.Paths.HistoryDB)
	if err != nil {
		logger.Warn("run history unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "history_open_failed"),
			logging.String(logging.FieldErrorHint, "delete the history database or set history.enabled = false"),
		)
		return
	}
	defer store.Close()
	if _, err := store.Record(ctx, run); err != nil {
		logger.Warn("run not recorded in history",
			logging.Error(err),
			logging.String(logging.FieldEventType, "history_record_failed"),
		)
	}
}
