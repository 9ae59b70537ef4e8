package imaging

import "fmt"

// Range is an inclusive index span along one axis.
type Range struct {
	Min int
	Max int
}

// Len returns the number of indices covered.
func (r Range) Len() int { return r.Max - r.Min + 1 }

// Interval selects the spatiotemporal region of a volume to process. Z and T
// are ignored when the volume has no such axis. Channels are never selected
// here: the wrapped tool picks channels itself.
type Interval struct {
	X Range
	Y Range
	Z Range
	T Range
}

// FullInterval covers every pixel and timepoint of v.
func FullInterval(v *Volume) Interval {
	return Interval{
		X: Range{0, v.Size(AxisX) - 1},
		Y: Range{0, v.Size(AxisY) - 1},
		Z: Range{0, v.Size(AxisZ) - 1},
		T: Range{0, v.Size(AxisTime) - 1},
	}
}

// Validate checks that the interval lies inside v.
func (iv Interval) Validate(v *Volume) error {
	check := func(a Axis, r Range) error {
		if !v.Has(a) {
			return nil
		}
		size := v.Size(a)
		if r.Min < 0 || r.Max >= size || r.Min > r.Max {
			return fmt.Errorf("interval along %s [%d, %d] outside [0, %d]", a, r.Min, r.Max, size-1)
		}
		return nil
	}
	for _, c := range []struct {
		axis Axis
		r    Range
	}{{AxisX, iv.X}, {AxisY, iv.Y}, {AxisZ, iv.Z}, {AxisTime, iv.T}} {
		if err := check(c.axis, c.r); err != nil {
			return err
		}
	}
	return nil
}

// SpatialMin returns the interval's lower corner along the spatial axes v
// carries, in X, Y, Z order.
func (iv Interval) SpatialMin(v *Volume) []int {
	mins := []int{iv.X.Min, iv.Y.Min}
	if v.Has(AxisZ) {
		mins = append(mins, iv.Z.Min)
	}
	return mins
}

// MinTime returns the first absolute timepoint selected, or 0 when v has no
// time axis.
func (iv Interval) MinTime(v *Volume) int {
	if !v.Has(AxisTime) {
		return 0
	}
	return iv.T.Min
}
