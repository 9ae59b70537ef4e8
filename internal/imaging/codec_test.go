package imaging_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"segrun/internal/imaging"
)

func TestWriteFrameSinglePlaneReadsBack(t *testing.T) {
	vol := newTestVolume(t, []imaging.Axis{imaging.AxisX, imaging.AxisY}, []int{5, 4})
	path := filepath.Join(t.TempDir(), "0.tif")
	if err := imaging.WriteFrame(path, vol); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	pages, err := imaging.ReadPages(path)
	if err != nil {
		t.Fatalf("ReadPages: %v", err)
	}
	if len(pages) != 1 || pages[0].Width != 5 || pages[0].Height != 4 {
		t.Fatalf("unexpected pages %+v", pages)
	}
	for i, v := range pages[0].Pix {
		if v != vol.Pix[i] {
			t.Fatalf("pixel %d = %d, want %d", i, v, vol.Pix[i])
		}
	}
}

func TestWriteFrameDepthWritesOnePagePerSlice(t *testing.T) {
	vol := newTestVolume(t, []imaging.Axis{imaging.AxisX, imaging.AxisY, imaging.AxisZ}, []int{3, 2, 4})
	path := filepath.Join(t.TempDir(), "3.tif")
	if err := imaging.WriteFrame(path, vol); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	mask, err := imaging.ReadMask(path)
	if err != nil {
		t.Fatalf("ReadMask: %v", err)
	}
	if mask.Depth != 4 || mask.Width != 3 || mask.Height != 2 {
		t.Fatalf("unexpected mask shape %dx%dx%d", mask.Width, mask.Height, mask.Depth)
	}
	if got, want := mask.At(2, 1, 3), vol.At(2, 1, 3); got != want {
		t.Fatalf("At(2,1,3) = %d, want %d", got, want)
	}
}

func TestReadMaskKeepsEightBitLabelValues(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	img.SetGray(1, 1, color.Gray{Y: 7})
	path := filepath.Join(t.TempDir(), "0_cp_masks.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = f.Close()

	mask, err := imaging.ReadMask(path)
	if err != nil {
		t.Fatalf("ReadMask: %v", err)
	}
	if mask.At(1, 1, 0) != 7 {
		t.Fatalf("expected label 7, got %d", mask.At(1, 1, 0))
	}
	if mask.Blank {
		t.Fatal("decoded mask must not be marked blank")
	}
}

func TestReadMaskDecodesCompressedTIFF(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 4, 3))
	img.SetGray16(2, 1, color.Gray16{Y: 300})
	path := filepath.Join(t.TempDir(), "0_cp_masks.tif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = f.Close()

	mask, err := imaging.ReadMask(path)
	if err != nil {
		t.Fatalf("ReadMask: %v", err)
	}
	if mask.Width != 4 || mask.Height != 3 || mask.Depth != 1 {
		t.Fatalf("unexpected mask shape %dx%dx%d", mask.Width, mask.Height, mask.Depth)
	}
	if mask.At(2, 1, 0) != 300 {
		t.Fatalf("expected label 300, got %d", mask.At(2, 1, 0))
	}
}

func TestWritePagesRejectsShortPage(t *testing.T) {
	pages := []imaging.Page{{Width: 2, Height: 2, Pix: []uint16{1, 2, 3}}}
	if err := imaging.WritePages(filepath.Join(t.TempDir(), "bad.tif"), pages); err == nil {
		t.Fatal("expected sample count error")
	}
}

func TestReadVolumeLayout(t *testing.T) {
	pages := make([]imaging.Page, 0, 6)
	for i := 0; i < 6; i++ {
		pages = append(pages, imaging.Page{Width: 2, Height: 2, Pix: []uint16{uint16(i), 0, 0, 0}})
	}
	path := filepath.Join(t.TempDir(), "stack.tif")
	if err := imaging.WritePages(path, pages); err != nil {
		t.Fatalf("WritePages: %v", err)
	}

	vol, err := imaging.ReadVolume(path, imaging.StackLayout{Channels: 2, Frames: 3})
	if err != nil {
		t.Fatalf("ReadVolume: %v", err)
	}
	if vol.Shape() != "XYCT[2x2x2x3]" {
		t.Fatalf("unexpected shape %s", vol.Shape())
	}
	// page index = c + t*C
	if got := vol.At(0, 0, 1, 2); got != 5 {
		t.Fatalf("At(c=1,t=2) = %d, want 5", got)
	}

	if _, err := imaging.ReadVolume(path, imaging.StackLayout{Channels: 4, Frames: 2}); err == nil {
		t.Fatal("expected page count mismatch error")
	}
}

func TestNewLabelStackRejectsMixedShapes(t *testing.T) {
	masks := []imaging.Mask{imaging.NewBlankMask(2, 2, 1), imaging.NewBlankMask(3, 2, 1)}
	if _, err := imaging.NewLabelStack("bad", masks, [3]float64{1, 1, 1}); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}
