package logging

import "strings"

// ProgressSampler thins the progress fractions read from the tool log.
// Buckets run concurrently and append to the same log, so successive
// fractions jump back and forth; the sampler only emits when the highest
// fraction seen crosses a new step, or when the status changes.
type ProgressSampler struct {
	step     float64
	status   string
	lastStep int
	peak     float64
}

// NewProgressSampler emits at every step of the [0, 1] range (default 0.05).
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 || step > 1 {
		step = 0.05
	}
	return &ProgressSampler{step: step, lastStep: -1, peak: -1}
}

// ShouldLog reports whether fraction should be logged. Negative fractions
// mean unknown progress and only count for a status change.
func (s *ProgressSampler) ShouldLog(fraction float64, status string) bool {
	if s == nil {
		return true
	}
	emit := false
	if status = strings.TrimSpace(status); status != "" && status != s.status {
		s.status = status
		s.lastStep = -1
		s.peak = -1
		emit = true
	}
	if fraction < 0 || fraction <= s.peak {
		return emit
	}
	s.peak = min(fraction, 1)
	step := int(s.peak/s.step + 1e-9)
	if step > s.lastStep {
		s.lastStep = step
		emit = true
	}
	return emit
}

// Peak returns the highest fraction seen since the last status change.
func (s *ProgressSampler) Peak() float64 {
	if s == nil || s.peak < 0 {
		return 0
	}
	return s.peak
}

// Reset clears the sampler state when a new run starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.status = ""
	s.lastStep = -1
	s.peak = -1
}
