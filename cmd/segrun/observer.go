package main

import (
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"segrun/internal/progress"
)

// progressSteps is the bar resolution; tool progress arrives as a fraction.
const progressSteps = 1000

type barObserver struct {
	bar *progressbar.ProgressBar
}

func newBarObserver(w io.Writer) *barObserver {
	bar := progressbar.NewOptions(progressSteps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Starting"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
	)
	return &barObserver{bar: bar}
}

func (o *barObserver) Log(string) {}

func (o *barObserver) SetProgress(fraction float64) {
	_ = o.bar.Set(int(fraction * progressSteps))
}

func (o *barObserver) SetStatus(status string) {
	if status != "" {
		o.bar.Describe(status)
	}
}

func (o *barObserver) Finish() {
	_ = o.bar.Finish()
}

// newRunObserver draws a progress bar when w is a terminal and otherwise
// reports progress through the logger.
func newRunObserver(w io.Writer, quiet bool, logger *slog.Logger) (progress.Observer, func()) {
	logObserver := progress.NewLogObserver(logger)
	if quiet || !isTerminalWriter(w) {
		return logObserver, func() {}
	}
	bar := newBarObserver(w)
	return progress.Multi{bar, logObserver}, bar.Finish
}
