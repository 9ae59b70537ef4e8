package imaging

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// ReadMask loads a label image written by the segmentation tool and
// normalizes it to 16-bit labels. PNG masks are single planes; TIFF masks may
// hold one page per Z slice.
func ReadMask(path string) (Mask, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		f, err := os.Open(path)
		if err != nil {
			return Mask{}, err
		}
		defer f.Close()
		img, err := png.Decode(f)
		if err != nil {
			return Mask{}, fmt.Errorf("decode %s: %w", path, err)
		}
		page := imageToPage(img)
		return Mask{Width: page.Width, Height: page.Height, Depth: 1, Pix: page.Pix}, nil
	case ".tif", ".tiff":
		pages, err := ReadPages(path)
		if err != nil {
			return Mask{}, err
		}
		return masksFromPages(path, pages)
	default:
		return Mask{}, fmt.Errorf("unsupported mask format %q", filepath.Ext(path))
	}
}

func masksFromPages(path string, pages []Page) (Mask, error) {
	first := pages[0]
	m := Mask{Width: first.Width, Height: first.Height, Depth: len(pages)}
	m.Pix = make([]uint16, 0, first.Width*first.Height*len(pages))
	for i, p := range pages {
		if p.Width != first.Width || p.Height != first.Height {
			return Mask{}, fmt.Errorf("%s: page %d is %dx%d, expected %dx%d", path, i, p.Width, p.Height, first.Width, first.Height)
		}
		m.Pix = append(m.Pix, p.Pix...)
	}
	return m, nil
}
