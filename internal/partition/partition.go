// Package partition decides how many worker processes a run uses and which
// frames each of them receives.
package partition

import (
	"context"
	"runtime"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"

	"segrun/internal/frames"
)

// DefaultMultiprocessPlatforms lists the platforms where several concurrent
// CPU-only tool processes finish sooner than one. Elsewhere a single process
// already saturates the machine.
var DefaultMultiprocessPlatforms = []string{"darwin"}

// Policy carries the inputs of the concurrency decision.
type Policy struct {
	UseGPU     bool
	NumThreads int
	// Platform defaults to runtime.GOOS.
	Platform              string
	MultiprocessPlatforms []string
}

// Degree returns the number of buckets to create: NumThreads for CPU-only
// runs on a multiprocess platform, otherwise 1.
func Degree(p Policy) int {
	if p.UseGPU {
		return 1
	}
	platform := strings.TrimSpace(p.Platform)
	if platform == "" {
		platform = runtime.GOOS
	}
	allowed := p.MultiprocessPlatforms
	if allowed == nil {
		allowed = DefaultMultiprocessPlatforms
	}
	if !slices.Contains(allowed, platform) {
		return 1
	}
	return max(p.NumThreads, 1)
}

// DefaultNumThreads returns half the logical CPU count, at least 1.
func DefaultNumThreads(ctx context.Context) int {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	return max(n/2, 1)
}

// Bucket is the group of frames one worker process handles.
type Bucket struct {
	Index  int
	Frames []frames.Frame
}

// Globals lists the global frame indices in the bucket.
func (b Bucket) Globals() []int {
	out := make([]int, len(b.Frames))
	for i, f := range b.Frames {
		out[i] = f.Global
	}
	return out
}

// RoundRobin deals frames out to k buckets: bucket i gets frames i, i+k,
// i+2k and so on. Spreading frames this way keeps every process busy for a
// similar share of the timeline. No bucket is created without frames, so
// fewer than k buckets come back when there are fewer frames than k.
func RoundRobin(in []frames.Frame, k int) []Bucket {
	k = max(k, 1)
	k = min(k, max(len(in), 1))
	buckets := make([]Bucket, k)
	for i := range buckets {
		buckets[i].Index = i
	}
	for i, f := range in {
		b := &buckets[i%k]
		b.Frames = append(b.Frames, f)
	}
	if len(in) == 0 {
		return nil
	}
	return buckets
}

// Interleave restores the original frame order from round-robin buckets.
func Interleave(buckets []Bucket) []frames.Frame {
	total := 0
	for _, b := range buckets {
		total += len(b.Frames)
	}
	out := make([]frames.Frame, 0, total)
	for row := 0; len(out) < total; row++ {
		for _, b := range buckets {
			if row < len(b.Frames) {
				out = append(out, b.Frames[row])
			}
		}
	}
	return out
}
