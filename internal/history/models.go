package history

import (
	"time"

	"segrun/internal/services"
)

// Run is one ledger row.
type Run struct {
	ID            int64
	RunID         string
	SourcePath    string
	Tool          string
	Model         string
	Frames        int
	Buckets       int
	Objects       int
	MissingFrames int
	Status        services.Status
	ErrorMessage  string
	Elapsed       time.Duration
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Succeeded reports whether the run produced objects.
func (r Run) Succeeded() bool { return r.Status == services.StatusSucceeded }
