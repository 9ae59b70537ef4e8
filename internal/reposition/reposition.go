// Package reposition maps objects detected in a cropped, renumbered run back
// into the source volume's coordinates and timeline.
package reposition

import (
	"segrun/internal/imaging"
	"segrun/internal/labels"
)

// Shift is the offset between run-local and source coordinates.
type Shift struct {
	// Min is the interval's lower corner in pixels, X, Y and optionally Z.
	Min         []int
	Calibration [3]float64
	// MinT is the first source timepoint of the run.
	MinT          int
	FrameInterval float64
}

// NewShift derives the shift for a run of iv over vol. Without a time axis
// MinT is 0 and the frame interval is 1.
func NewShift(vol *imaging.Volume, iv imaging.Interval) Shift {
	return Shift{
		Min:           iv.SpatialMin(vol),
		Calibration:   vol.Calibration(),
		MinT:          iv.MinTime(vol),
		FrameInterval: vol.FrameInterval(),
	}
}

// Apply returns shifted copies of objs. The input is left untouched; applying
// the result again would shift twice.
func Apply(objs []labels.Object, s Shift) []labels.Object {
	interval := s.FrameInterval
	if interval == 0 {
		interval = 1
	}
	out := make([]labels.Object, len(objs))
	for i, o := range objs {
		for d := 0; d < len(s.Min) && d < len(o.Position); d++ {
			o.Position[d] += float64(s.Min[d]) * s.Calibration[d]
		}
		o.Frame += s.MinT
		o.Time = float64(o.Frame) * interval
		out[i] = o
	}
	return out
}
