package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"segrun/internal/logging"
	"segrun/internal/logs"
)

// DefaultPollInterval is the delay between log reads.
const DefaultPollInterval = 200 * time.Millisecond

// Option customizes a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger attaches a logger for read failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Monitor tails one log file on a background goroutine.
type Monitor struct {
	path     string
	observer Observer
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	offset  int64
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewMonitor creates a monitor for path reporting to observer.
func NewMonitor(path string, observer Observer, opts ...Option) *Monitor {
	if observer == nil {
		observer = Discard{}
	}
	m := &Monitor{
		path:     path,
		observer: observer,
		interval: DefaultPollInterval,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "progress")
	return m
}

// Start records the current end of the log and begins polling. Lines already
// in the file are never reported.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return errors.New("progress monitor already started")
	}
	offset, err := logs.Size(m.path)
	if err != nil {
		m.logger.Debug("progress log not readable yet", logging.String("path", m.path), logging.Error(err))
		offset = 0
	}
	m.offset = offset

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(runCtx, m.done)
	return nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	m.mu.Lock()
	offset := m.offset
	m.mu.Unlock()

	lines, next, err := logs.ReadFrom(m.path, offset)
	if err != nil {
		m.logger.Debug("progress log read failed", logging.String("path", m.path), logging.Error(err))
		return
	}

	m.mu.Lock()
	m.offset = next
	m.mu.Unlock()

	for _, line := range lines {
		m.observer.Log(line)
		if fraction, ok := ParseProgress(line); ok {
			m.observer.SetProgress(fraction)
		}
	}
}

// Stop ends polling, reports any remaining lines, then sets progress to 1 and
// clears the status. It is safe to call more than once and without Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		m.poll()
	}
	m.observer.SetProgress(1)
	m.observer.SetStatus("")
}
