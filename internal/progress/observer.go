package progress

import (
	"log/slog"
	"sync"

	"segrun/internal/logging"
)

// Observer receives tool output and progress. Implementations must be safe
// for use from the monitor goroutine and worker goroutines at once.
type Observer interface {
	Log(line string)
	SetProgress(fraction float64)
	SetStatus(status string)
}

// Discard is an Observer that ignores everything.
type Discard struct{}

func (Discard) Log(string)          {}
func (Discard) SetProgress(float64) {}
func (Discard) SetStatus(string)    {}

// LogObserver forwards tool lines at debug level and samples progress into
// info records at 5% steps of the highest fraction reached.
type LogObserver struct {
	logger  *slog.Logger
	mu      sync.Mutex
	sampler *logging.ProgressSampler
	status  string
}

// NewLogObserver wraps logger; a nil logger discards output.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogObserver{
		logger:  logging.NewComponentLogger(logger, "progress"),
		sampler: logging.NewProgressSampler(0.05),
	}
}

func (o *LogObserver) Log(line string) {
	o.logger.Debug("tool output", logging.String("line", line))
}

func (o *LogObserver) SetProgress(fraction float64) {
	o.mu.Lock()
	emit := o.sampler.ShouldLog(fraction, o.status)
	peak := o.sampler.Peak()
	status := o.status
	o.mu.Unlock()
	if emit {
		o.logger.Info("segmentation progress",
			logging.Float64("percent", peak*100),
			logging.String("status", status),
		)
	}
}

func (o *LogObserver) SetStatus(status string) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
	if status != "" {
		o.logger.Info(status)
	}
}

// Multi fans calls out to several observers in order.
type Multi []Observer

func (m Multi) Log(line string) {
	for _, o := range m {
		o.Log(line)
	}
}

func (m Multi) SetProgress(fraction float64) {
	for _, o := range m {
		o.SetProgress(fraction)
	}
}

func (m Multi) SetStatus(status string) {
	for _, o := range m {
		o.SetStatus(status)
	}
}
