package imaging

import "fmt"

// Mask is one frame of a label image: every non-zero value marks the
// footprint of one object. Planes are stored Z-major, then row-major.
type Mask struct {
	Width  int
	Height int
	Depth  int
	Pix    []uint16
	// Blank marks a placeholder synthesized for a frame the tool did not
	// produce.
	Blank bool
}

// NewBlankMask returns an all-zero placeholder mask.
func NewBlankMask(width, height, depth int) Mask {
	if depth < 1 {
		depth = 1
	}
	return Mask{
		Width:  width,
		Height: height,
		Depth:  depth,
		Pix:    make([]uint16, width*height*depth),
		Blank:  true,
	}
}

// At returns the label at (x, y, z).
func (m Mask) At(x, y, z int) uint16 {
	return m.Pix[(z*m.Height+y)*m.Width+x]
}

// SameShape reports whether m and o share dimensions.
func (m Mask) SameShape(o Mask) bool {
	return m.Width == o.Width && m.Height == o.Height && m.Depth == o.Depth
}

// LabelStack is a time series of masks with shared dimensions and physical
// calibration.
type LabelStack struct {
	Name          string
	Width         int
	Height        int
	Depth         int
	Calibration   [3]float64
	FrameInterval float64
	Frames        []Mask
}

// NewLabelStack concatenates masks in order. All masks must share the shape
// of the first one.
func NewLabelStack(name string, masks []Mask, calibration [3]float64) (*LabelStack, error) {
	if len(masks) == 0 {
		return nil, fmt.Errorf("label stack %q: no masks", name)
	}
	first := masks[0]
	for i, m := range masks[1:] {
		if !m.SameShape(first) {
			return nil, fmt.Errorf("label stack %q: frame %d is %dx%dx%d, expected %dx%dx%d",
				name, i+1, m.Width, m.Height, m.Depth, first.Width, first.Height, first.Depth)
		}
	}
	return &LabelStack{
		Name:          name,
		Width:         first.Width,
		Height:        first.Height,
		Depth:         first.Depth,
		Calibration:   calibration,
		FrameInterval: 1,
		Frames:        append([]Mask(nil), masks...),
	}, nil
}

// Len returns the number of frames.
func (s *LabelStack) Len() int { return len(s.Frames) }
