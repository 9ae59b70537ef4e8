// Package labels turns a label stack into detected objects.
package labels

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"segrun/internal/imaging"
	"segrun/internal/services"
)

// Object is one labeled region in one frame. Position is in physical units
// relative to the stack origin; Frame is the 0-based stack frame.
type Object struct {
	ID       int
	Label    uint16
	Frame    int
	Position [3]float64
	Time     float64
	// Size is the physical area of 2D objects or volume of 3D objects.
	Size    float64
	Radius  float64
	Quality float64
}

// Detector converts a label stack into objects.
type Detector interface {
	Detect(ctx context.Context, stack *imaging.LabelStack) ([]Object, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, stack *imaging.LabelStack) ([]Object, error)

func (f DetectorFunc) Detect(ctx context.Context, stack *imaging.LabelStack) ([]Object, error) {
	return f(ctx, stack)
}

// CentroidDetector reports one object per distinct non-zero label per frame,
// positioned at the label's centroid. Quality is the pixel count.
type CentroidDetector struct{}

type region struct {
	xs, ys, zs []float64
}

func (CentroidDetector) Detect(ctx context.Context, stack *imaging.LabelStack) ([]Object, error) {
	if stack == nil || stack.Len() == 0 {
		return nil, services.Wrap(services.ErrDetection, "detect", "", "label image is empty", nil)
	}
	cal := stack.Calibration
	is3D := stack.Depth > 1
	voxel := cal[0] * cal[1]
	if is3D {
		voxel *= cal[2]
	}

	var objects []Object
	for t, mask := range stack.Frames {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrCanceled, "detect", "", "detection canceled", err)
		}
		if len(mask.Pix) != mask.Width*mask.Height*mask.Depth {
			return nil, services.Wrap(services.ErrDetection, "detect", "", "frame buffer does not match its dimensions", nil)
		}
		regions := make(map[uint16]*region)
		for z := 0; z < mask.Depth; z++ {
			for y := 0; y < mask.Height; y++ {
				for x := 0; x < mask.Width; x++ {
					label := mask.At(x, y, z)
					if label == 0 {
						continue
					}
					r := regions[label]
					if r == nil {
						r = &region{}
						regions[label] = r
					}
					r.xs = append(r.xs, float64(x))
					r.ys = append(r.ys, float64(y))
					r.zs = append(r.zs, float64(z))
				}
			}
		}

		keys := make([]uint16, 0, len(regions))
		for label := range regions {
			keys = append(keys, label)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, label := range keys {
			r := regions[label]
			count := float64(len(r.xs))
			size := count * voxel
			obj := Object{
				ID:    len(objects),
				Label: label,
				Frame: t,
				Position: [3]float64{
					stat.Mean(r.xs, nil) * cal[0],
					stat.Mean(r.ys, nil) * cal[1],
					stat.Mean(r.zs, nil) * cal[2],
				},
				Time:    float64(t) * stack.FrameInterval,
				Size:    size,
				Quality: count,
			}
			if is3D {
				obj.Radius = math.Cbrt(3 * size / (4 * math.Pi))
			} else {
				obj.Radius = math.Sqrt(size / math.Pi)
			}
			objects = append(objects, obj)
		}
	}
	return objects, nil
}
