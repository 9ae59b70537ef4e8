// Package frames crops a source volume into the per-timepoint units handed to
// the segmentation tool.
package frames

import (
	"fmt"

	"segrun/internal/imaging"
	"segrun/internal/services"
)

// Frame is one timepoint cropped to the processing interval.
type Frame struct {
	// Global is the absolute timepoint inside the source volume.
	Global int
	// Local is the 0-based position inside the run; the tool only ever sees
	// this index.
	Local int
	// Name is the file stem the frame is written under.
	Name  string
	Plane *imaging.Volume
}

// FileName returns the TIFF file name for the frame.
func (f Frame) FileName() string { return f.Name + ".tif" }

// Namer maps a local frame index to a file stem.
type Namer func(local int) string

// DefaultNamer formats the index as a bare decimal, the convention the
// wrapped tools use when naming their mask outputs.
func DefaultNamer(local int) string { return fmt.Sprintf("%d", local) }

// Split crops vol to iv and returns one frame per selected timepoint. The
// crop keeps every channel; channel selection belongs to the tool. Frames are
// renumbered from zero even when the interval starts later in time.
func Split(vol *imaging.Volume, iv imaging.Interval, name Namer) ([]Frame, error) {
	if vol == nil {
		return nil, services.Wrap(services.ErrValidation, "split", "", "image is nil", nil)
	}
	if err := iv.Validate(vol); err != nil {
		return nil, services.Wrap(services.ErrValidation, "split", "interval", "", err)
	}
	if name == nil {
		name = DefaultNamer
	}

	bounds := cropBounds(vol, iv)
	tIdx := vol.AxisIndex(imaging.AxisTime)
	if tIdx < 0 {
		plane, err := vol.Crop(bounds)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "split", "crop", "", err)
		}
		return []Frame{{Global: 0, Local: 0, Name: name(0), Plane: plane}}, nil
	}

	out := make([]Frame, 0, iv.T.Len())
	for t := iv.T.Min; t <= iv.T.Max; t++ {
		bounds.Min[tIdx], bounds.Max[tIdx] = t, t
		plane, err := vol.Crop(bounds, imaging.AxisTime)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "split", "crop", fmt.Sprintf("timepoint %d", t), err)
		}
		local := t - iv.T.Min
		out = append(out, Frame{Global: t, Local: local, Name: name(local), Plane: plane})
	}
	return out, nil
}

func cropBounds(vol *imaging.Volume, iv imaging.Interval) imaging.Bounds {
	b := imaging.Bounds{Min: make([]int, len(vol.Axes)), Max: make([]int, len(vol.Axes))}
	for i, a := range vol.Axes {
		switch a {
		case imaging.AxisX:
			b.Min[i], b.Max[i] = iv.X.Min, iv.X.Max
		case imaging.AxisY:
			b.Min[i], b.Max[i] = iv.Y.Min, iv.Y.Max
		case imaging.AxisZ:
			b.Min[i], b.Max[i] = iv.Z.Min, iv.Z.Max
		case imaging.AxisChannel:
			b.Min[i], b.Max[i] = 0, vol.Dims[i]-1
		case imaging.AxisTime:
			b.Min[i], b.Max[i] = iv.T.Min, iv.T.Max
		}
	}
	return b
}

// CheckDepth rejects volumes with more than one Z slice for tools that only
// segment 2D frames over time.
func CheckDepth(vol *imaging.Volume, only2D bool) error {
	if vol == nil {
		return services.Wrap(services.ErrValidation, "split", "", "image is nil", nil)
	}
	if only2D && vol.Size(imaging.AxisZ) > 1 {
		return services.Wrap(services.ErrValidation, "split", "", "Image must be 2D over time, got an image with multiple Z.", nil)
	}
	return nil
}
