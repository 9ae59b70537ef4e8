package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"segrun/internal/imaging"
)

// WriteSeries writes a single-channel 2D time series as a multi-page TIFF,
// one page per frame. fill supplies the pixel value at (x, y) of frame t; a
// nil fill writes the frame index everywhere.
func WriteSeries(t testing.TB, path string, width, height, frames int, fill func(x, y, t int) uint16) {
	t.Helper()

	if fill == nil {
		fill = func(_, _, t int) uint16 { return uint16(t) }
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	pages := make([]imaging.Page, frames)
	for ti := range pages {
		pix := make([]uint16, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pix[y*width+x] = fill(x, y, ti)
			}
		}
		pages[ti] = imaging.Page{Width: width, Height: height, Pix: pix}
	}
	if err := imaging.WritePages(path, pages); err != nil {
		t.Fatalf("write series %s: %v", path, err)
	}
}
