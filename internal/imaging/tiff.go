package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	mtiff "github.com/chai2010/tiff"
	"golang.org/x/image/tiff"
)

// Page is one decoded TIFF plane.
type Page struct {
	Width  int
	Height int
	Pix    []uint16
}

// WriteFrame serializes a frame volume (X, Y and optional Z and C axes) as a
// TIFF. Single planes go through the x/image encoder; stacks are written as a
// multi-page grayscale TIFF with channels interleaved inside each Z slice.
func WriteFrame(path string, v *Volume) error {
	if v.Has(AxisTime) && v.Size(AxisTime) > 1 {
		return fmt.Errorf("write frame %s: volume still has %d timepoints", path, v.Size(AxisTime))
	}
	width, height := v.Size(AxisX), v.Size(AxisY)
	depth, channels := v.Size(AxisZ), v.Size(AxisChannel)

	var buf bytes.Buffer
	switch {
	case depth == 1 && channels == 1:
		img := image.NewGray16(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: v.Pix[y*width+x]})
			}
		}
		if err := tiff.Encode(&buf, img, nil); err != nil {
			return fmt.Errorf("encode frame %s: %w", path, err)
		}
	case depth == 1 && channels <= 3:
		img := image.NewRGBA64(image.Rect(0, 0, width, height))
		cIdx := v.AxisIndex(AxisChannel)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				var rgb [3]uint16
				for c := 0; c < channels; c++ {
					coords := make([]int, len(v.Axes))
					coords[0], coords[1], coords[cIdx] = x, y, c
					rgb[c] = v.At(coords...)
				}
				img.SetRGBA64(x, y, color.RGBA64{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xffff})
			}
		}
		if err := tiff.Encode(&buf, img, nil); err != nil {
			return fmt.Errorf("encode frame %s: %w", path, err)
		}
	default:
		pages := make([]Page, 0, depth*channels)
		zIdx, cIdx := v.AxisIndex(AxisZ), v.AxisIndex(AxisChannel)
		for z := 0; z < depth; z++ {
			for c := 0; c < channels; c++ {
				page := Page{Width: width, Height: height, Pix: make([]uint16, width*height)}
				coords := make([]int, len(v.Axes))
				if zIdx >= 0 {
					coords[zIdx] = z
				}
				if cIdx >= 0 {
					coords[cIdx] = c
				}
				for y := 0; y < height; y++ {
					for x := 0; x < width; x++ {
						coords[0], coords[1] = x, y
						page.Pix[y*width+x] = v.At(coords...)
					}
				}
				pages = append(pages, page)
			}
		}
		if err := encodePages(&buf, pages); err != nil {
			return fmt.Errorf("encode frame %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write frame %s: %w", path, err)
	}
	return nil
}

// WritePages stores 16-bit grayscale pages as an uncompressed multi-page TIFF.
func WritePages(path string, pages []Page) error {
	if len(pages) == 0 {
		return fmt.Errorf("write %s: no pages", path)
	}
	var buf bytes.Buffer
	if err := encodePages(&buf, pages); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ReadPages decodes every page of a TIFF as 16-bit values. Files the
// multi-page decoder rejects are retried with the x/image decoder, which
// yields the first page only.
func ReadPages(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pages, err := decodePages(data)
	if err == nil {
		return pages, nil
	}
	img, decErr := tiff.Decode(bytes.NewReader(data))
	if decErr != nil {
		return nil, fmt.Errorf("decode %s: %w", path, errors.Join(err, decErr))
	}
	return []Page{imageToPage(img)}, nil
}

func decodePages(data []byte) ([]Page, error) {
	images, _, err := mtiff.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(images))
	for _, sub := range images {
		// sub-IFDs after the first entry are thumbnails
		if len(sub) == 0 || sub[0] == nil {
			continue
		}
		pages = append(pages, imageToPage(sub[0]))
	}
	if len(pages) == 0 {
		return nil, errors.New("no image pages")
	}
	return pages, nil
}

// encodePages lays out one IFD per page followed by its pixel strip. Header
// and directory entries are serialized by the tiff package.
func encodePages(buf *bytes.Buffer, pages []Page) error {
	hdr := mtiff.NewHeader(false, 8)
	order := hdr.ByteOrder
	buf.Write(hdr.Bytes()[:hdr.HeadSize()])

	const entries = 10
	ifdSize := 2 + entries*12 + 4
	offset := int64(hdr.HeadSize())
	for i, p := range pages {
		if len(p.Pix) != p.Width*p.Height {
			return fmt.Errorf("page %d: %d samples for %dx%d", i, len(p.Pix), p.Width, p.Height)
		}
		dataLen := int64(len(p.Pix) * 2)
		dataOffset := offset + int64(ifdSize)
		next := int64(0)
		if i < len(pages)-1 {
			next = dataOffset + dataLen
		}
		if next > math.MaxUint32 {
			return fmt.Errorf("page %d: stack exceeds 4 GiB", i)
		}

		tags := []struct {
			tag   mtiff.TagType
			typ   mtiff.DataType
			value int64
		}{
			{mtiff.TagType_ImageWidth, mtiff.DataType_Long, int64(p.Width)},
			{mtiff.TagType_ImageLength, mtiff.DataType_Long, int64(p.Height)},
			{mtiff.TagType_BitsPerSample, mtiff.DataType_Short, 16},
			{mtiff.TagType_Compression, mtiff.DataType_Short, 1},
			{mtiff.TagType_PhotometricInterpretation, mtiff.DataType_Short, 1},
			{mtiff.TagType_StripOffsets, mtiff.DataType_Long, dataOffset},
			{mtiff.TagType_SamplesPerPixel, mtiff.DataType_Short, 1},
			{mtiff.TagType_RowsPerStrip, mtiff.DataType_Long, int64(p.Height)},
			{mtiff.TagType_StripByteCounts, mtiff.DataType_Long, dataLen},
			{mtiff.TagType_SampleFormat, mtiff.DataType_Short, 1},
		}
		_ = binary.Write(buf, order, uint16(len(tags)))
		for _, t := range tags {
			entry := &mtiff.IFDEntry{Header: hdr, Tag: t.tag, DataType: t.typ}
			if err := entry.SetInts(t.value); err != nil {
				return fmt.Errorf("page %d tag %d: %w", i, t.tag, err)
			}
			raw, _ := entry.Bytes()
			buf.Write(raw)
		}
		_ = binary.Write(buf, order, uint32(next))
		_ = binary.Write(buf, order, p.Pix)
		offset = next
	}
	return nil
}

// imageToPage converts a decoded image to 16-bit label values. Gray and
// paletted sources keep their integer values; other models are converted to
// 16-bit luminance.
func imageToPage(img image.Image) Page {
	b := img.Bounds()
	page := Page{Width: b.Dx(), Height: b.Dy(), Pix: make([]uint16, b.Dx()*b.Dy())}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			idx := (y-b.Min.Y)*page.Width + (x - b.Min.X)
			switch src := img.(type) {
			case *image.Gray:
				page.Pix[idx] = uint16(src.GrayAt(x, y).Y)
			case *image.Gray16:
				page.Pix[idx] = src.Gray16At(x, y).Y
			case *image.Paletted:
				page.Pix[idx] = uint16(src.ColorIndexAt(x, y))
			default:
				page.Pix[idx] = color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
			}
		}
	}
	return page
}
