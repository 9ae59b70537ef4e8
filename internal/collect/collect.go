// Package collect gathers the masks written by every bucket back into one
// label stack ordered like the input frames.
package collect

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"segrun/internal/frames"
	"segrun/internal/imaging"
	"segrun/internal/logging"
	"segrun/internal/segtool"
	"segrun/internal/services"
)

// Options configures Collect.
type Options struct {
	Profile segtool.Profile
	// Source provides the stack name, calibration and frame interval.
	Source *imaging.Volume
	Logger *slog.Logger
}

// Report lists which frames were found and which were replaced by blanks,
// by local index.
type Report struct {
	Found   []int
	Missing []int
	// Files maps the local index of every found frame to the mask file read.
	Files map[int]string
}

// Collect looks up the mask of every expected frame in dirs, first match
// wins, and concatenates them in frame order. A frame with no readable mask
// in any dir becomes a blank plane sized like the first input frame.
func Collect(ctx context.Context, expected []frames.Frame, dirs []string, opts Options) (*imaging.LabelStack, Report, error) {
	report := Report{Files: make(map[int]string)}
	if len(expected) == 0 {
		return nil, report, services.Wrap(services.ErrValidation, "collect", "", "no frames to collect", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "collect")

	first := expected[0].Plane
	width, height, depth := 1, 1, 1
	if first != nil {
		width, height, depth = first.Size(imaging.AxisX), first.Size(imaging.AxisY), first.Size(imaging.AxisZ)
	}

	masks := make([]imaging.Mask, 0, len(expected))
	for _, frame := range expected {
		if err := ctx.Err(); err != nil {
			return nil, report, services.Wrap(services.ErrCanceled, "collect", "", "collection canceled", err)
		}
		name := opts.Profile.MaskFileNameFor(frame.Name)
		mask, path, ok := find(logger, dirs, name)
		if !ok {
			logging.WarnWithContext(logger, "could not find results file for timepoint", "mask_missing",
				logging.String("file", name),
				logging.Int("frame", frame.Global),
				logging.String(logging.FieldImpact, "frame replaced by a blank mask"),
				logging.String(logging.FieldErrorHint, "check the tool output for errors on this frame"),
			)
			masks = append(masks, imaging.NewBlankMask(width, height, depth))
			report.Missing = append(report.Missing, frame.Local)
			continue
		}
		logger.Debug("mask loaded", logging.String("path", path), logging.Int("frame", frame.Global))
		masks = append(masks, mask)
		report.Found = append(report.Found, frame.Local)
		report.Files[frame.Local] = path
	}

	name := "segmentation"
	calibration := [3]float64{1, 1, 1}
	interval := 1.0
	if opts.Source != nil {
		if opts.Source.Name != "" {
			name = opts.Source.Name
		}
		calibration = opts.Source.Calibration()
		interval = opts.Source.FrameInterval()
	}
	stack, err := imaging.NewLabelStack(name+"_"+opts.Profile.DisplayName()+"Output", masks, calibration)
	if err != nil {
		return nil, report, services.Wrap(services.ErrExternalTool, "collect", "concatenate", "tool output does not match input frames", err)
	}
	stack.FrameInterval = interval
	return stack, report, nil
}

func find(logger *slog.Logger, dirs []string, name string) (imaging.Mask, string, bool) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name)
		mask, err := imaging.ReadMask(path)
		if err == nil {
			return mask, path, true
		}
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug("mask unreadable", logging.String("path", path), logging.Error(err))
		}
	}
	return imaging.Mask{}, "", false
}
