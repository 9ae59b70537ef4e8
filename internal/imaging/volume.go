package imaging

import (
	"errors"
	"fmt"
	"strings"
)

// Axis identifies a volume dimension.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisChannel
	AxisTime
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	case AxisChannel:
		return "C"
	case AxisTime:
		return "T"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Volume is a dense N-dimensional 16-bit image. Pixels are stored with the
// first axis varying fastest. X and Y are always present and come first.
type Volume struct {
	Name  string
	Axes  []Axis
	Dims  []int
	Scale []float64
	Unit  string
	Pix   []uint16
}

// NewVolume allocates a zeroed volume. Scale defaults to 1 on every axis.
func NewVolume(name string, axes []Axis, dims []int) (*Volume, error) {
	if len(axes) != len(dims) {
		return nil, fmt.Errorf("axes/dims mismatch: %d axes, %d dims", len(axes), len(dims))
	}
	if len(axes) < 2 || axes[0] != AxisX || axes[1] != AxisY {
		return nil, errors.New("volume must start with X and Y axes")
	}
	seen := make(map[Axis]struct{}, len(axes))
	total := 1
	for i, a := range axes {
		if _, ok := seen[a]; ok {
			return nil, fmt.Errorf("duplicate axis %s", a)
		}
		seen[a] = struct{}{}
		if dims[i] <= 0 {
			return nil, fmt.Errorf("axis %s has non-positive size %d", a, dims[i])
		}
		total *= dims[i]
	}
	scale := make([]float64, len(axes))
	for i := range scale {
		scale[i] = 1
	}
	return &Volume{
		Name:  name,
		Axes:  append([]Axis(nil), axes...),
		Dims:  append([]int(nil), dims...),
		Scale: scale,
		Pix:   make([]uint16, total),
	}, nil
}

// AxisIndex returns the position of a in the axes order, or -1.
func (v *Volume) AxisIndex(a Axis) int {
	for i, axis := range v.Axes {
		if axis == a {
			return i
		}
	}
	return -1
}

// Has reports whether the volume carries axis a.
func (v *Volume) Has(a Axis) bool { return v.AxisIndex(a) >= 0 }

// Size returns the extent along a, or 1 when the axis is absent.
func (v *Volume) Size(a Axis) int {
	if idx := v.AxisIndex(a); idx >= 0 {
		return v.Dims[idx]
	}
	return 1
}

// AxisScale returns the calibration along a, or 1 when the axis is absent.
func (v *Volume) AxisScale(a Axis) float64 {
	if idx := v.AxisIndex(a); idx >= 0 && v.Scale[idx] > 0 {
		return v.Scale[idx]
	}
	return 1
}

// SetScale sets the calibration along a when the axis is present.
func (v *Volume) SetScale(a Axis, value float64) {
	if idx := v.AxisIndex(a); idx >= 0 {
		v.Scale[idx] = value
	}
}

// Calibration returns the physical pixel size along X, Y and Z. Missing axes
// report 1.
func (v *Volume) Calibration() [3]float64 {
	return [3]float64{v.AxisScale(AxisX), v.AxisScale(AxisY), v.AxisScale(AxisZ)}
}

// FrameInterval returns the physical time between frames, or 1 without a
// time axis.
func (v *Volume) FrameInterval() float64 {
	return v.AxisScale(AxisTime)
}

func (v *Volume) offset(coords []int) int {
	off := 0
	stride := 1
	for i, c := range coords {
		off += c * stride
		stride *= v.Dims[i]
	}
	return off
}

// At returns the pixel at coords, given in axes order.
func (v *Volume) At(coords ...int) uint16 {
	return v.Pix[v.offset(coords)]
}

// Set stores value at coords, given in axes order.
func (v *Volume) Set(value uint16, coords ...int) {
	v.Pix[v.offset(coords)] = value
}

// Bounds is an inclusive per-axis box in a volume's axes order.
type Bounds struct {
	Min []int
	Max []int
}

// Crop copies the box b into a new volume. Axes listed in drop must have an
// extent of one inside b and are removed from the result.
func (v *Volume) Crop(b Bounds, drop ...Axis) (*Volume, error) {
	if len(b.Min) != len(v.Axes) || len(b.Max) != len(v.Axes) {
		return nil, fmt.Errorf("crop bounds have %d/%d dims, volume has %d", len(b.Min), len(b.Max), len(v.Axes))
	}
	for i := range v.Axes {
		if b.Min[i] < 0 || b.Max[i] >= v.Dims[i] || b.Min[i] > b.Max[i] {
			return nil, fmt.Errorf("crop along %s [%d, %d] outside [0, %d]", v.Axes[i], b.Min[i], b.Max[i], v.Dims[i]-1)
		}
	}
	dropped := make(map[Axis]struct{}, len(drop))
	for _, a := range drop {
		idx := v.AxisIndex(a)
		if idx < 0 {
			continue
		}
		if b.Min[idx] != b.Max[idx] {
			return nil, fmt.Errorf("cannot drop axis %s spanning %d values", a, b.Max[idx]-b.Min[idx]+1)
		}
		dropped[a] = struct{}{}
	}

	var axes []Axis
	var dims []int
	var scale []float64
	for i, a := range v.Axes {
		if _, ok := dropped[a]; ok {
			continue
		}
		axes = append(axes, a)
		dims = append(dims, b.Max[i]-b.Min[i]+1)
		scale = append(scale, v.Scale[i])
	}
	out, err := NewVolume(v.Name, axes, dims)
	if err != nil {
		return nil, err
	}
	copy(out.Scale, scale)
	out.Unit = v.Unit

	src := append([]int(nil), b.Min...)
	n := len(out.Pix)
	for i := 0; i < n; i++ {
		out.Pix[i] = v.Pix[v.offset(src)]
		for d := range src {
			src[d]++
			if src[d] <= b.Max[d] {
				break
			}
			src[d] = b.Min[d]
		}
	}
	return out, nil
}

// Shape renders the axes and sizes, e.g. "XYCT[64x64x2x5]".
func (v *Volume) Shape() string {
	var names strings.Builder
	sizes := make([]string, len(v.Dims))
	for i, a := range v.Axes {
		names.WriteString(a.String())
		sizes[i] = fmt.Sprint(v.Dims[i])
	}
	return names.String() + "[" + strings.Join(sizes, "x") + "]"
}
