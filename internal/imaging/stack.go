package imaging

import (
	"fmt"
	"path/filepath"
	"strings"
)

// StackLayout describes how the pages of a multi-page TIFF map onto a
// hyperstack. Pages follow the channel, slice, frame order with channels
// varying fastest.
type StackLayout struct {
	Channels int
	Slices   int
	Frames   int
}

// ReadVolume loads a multi-page TIFF as a volume. Axes with a count of one
// are omitted, matching how single-slice or single-frame data is usually
// represented.
func ReadVolume(path string, layout StackLayout) (*Volume, error) {
	pages, err := ReadPages(path)
	if err != nil {
		return nil, err
	}
	c, z, t := max(layout.Channels, 1), max(layout.Slices, 1), max(layout.Frames, 1)
	if layout.Channels <= 0 && layout.Slices <= 0 && layout.Frames <= 0 {
		t = len(pages)
	}
	if c*z*t != len(pages) {
		return nil, fmt.Errorf("%s: layout c=%d z=%d t=%d needs %d pages, file has %d", path, c, z, t, c*z*t, len(pages))
	}
	width, height := pages[0].Width, pages[0].Height

	axes := []Axis{AxisX, AxisY}
	dims := []int{width, height}
	if z > 1 {
		axes, dims = append(axes, AxisZ), append(dims, z)
	}
	if c > 1 {
		axes, dims = append(axes, AxisChannel), append(dims, c)
	}
	if t > 1 {
		axes, dims = append(axes, AxisTime), append(dims, t)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	vol, err := NewVolume(name, axes, dims)
	if err != nil {
		return nil, err
	}

	zIdx, cIdx, tIdx := vol.AxisIndex(AxisZ), vol.AxisIndex(AxisChannel), vol.AxisIndex(AxisTime)
	coords := make([]int, len(axes))
	for i, p := range pages {
		if p.Width != width || p.Height != height {
			return nil, fmt.Errorf("%s: page %d is %dx%d, expected %dx%d", path, i, p.Width, p.Height, width, height)
		}
		ci, zi, ti := i%c, (i/c)%z, i/(c*z)
		if zIdx >= 0 {
			coords[zIdx] = zi
		}
		if cIdx >= 0 {
			coords[cIdx] = ci
		}
		if tIdx >= 0 {
			coords[tIdx] = ti
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				coords[0], coords[1] = x, y
				vol.Set(p.Pix[y*width+x], coords...)
			}
		}
	}
	return vol, nil
}
