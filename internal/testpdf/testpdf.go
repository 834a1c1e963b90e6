// Package testpdf writes small fixture PDFs for tests.
package testpdf

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/book-expert/pdf-tools/internal/pdfwrite"
)

// Size is a page size in points.
type Size struct {
	Width  float64
	Height float64
}

// A4 is the ISO A4 page size in points.
var A4 = Size{Width: 595, Height: 842}

// FullInfo returns a value for every standard information dictionary entry.
func FullInfo() map[string]string {
	return map[string]string{
		"Title":        "Field Guide",
		"Author":       "Ada Lovelace",
		"Subject":      "Birds",
		"Keywords":     "birds, field, guide",
		"Creator":      "Scanner Suite",
		"Producer":     "AcmeWriter 1.0",
		"CreationDate": "D:20200101000000+00'00'",
		"ModDate":      "D:20200102000000+00'00'",
	}
}

// Uniform returns count copies of size.
func Uniform(count int, size Size) []Size {
	sizes := make([]Size, count)
	for index := range sizes {
		sizes[index] = size
	}

	return sizes
}

// Distinct returns count sizes that differ page by page, so page order can be
// checked after a transformation. Widths start at base and grow by one point.
func Distinct(count int, base float64) []Size {
	sizes := make([]Size, count)
	for index := range sizes {
		sizes[index] = Size{Width: base + float64(index), Height: base * 1.5}
	}

	return sizes
}

// Write creates a PDF at path with one image page per size and the given
// information dictionary entries, and returns path.
func Write(tb testing.TB, path string, sizes []Size, info map[string]string) string {
	tb.Helper()

	writer := pdfwrite.New()

	for index, size := range sizes {
		require.NoError(tb, writer.AddPage(pdfwrite.ImagePage{
			Width:  size.Width,
			Height: size.Height,
			Image:  swatch(tb, index),
		}))
	}

	keys := make([]string, 0, len(info))
	for key := range info {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		require.NoError(tb, writer.SetInfo(key, info[key]))
	}

	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o750))

	var buf bytes.Buffer

	_, writeErr := writer.WriteTo(&buf)
	require.NoError(tb, writeErr)
	require.NoError(tb, os.WriteFile(path, buf.Bytes(), 0o600))

	return path
}

// swatch returns a small solid JPEG whose color depends on index.
func swatch(tb testing.TB, index int) pdfwrite.JPEGImage {
	tb.Helper()

	const side = 16

	img := image.NewRGBA(image.Rect(0, 0, side, side))
	fill := color.RGBA{R: uint8(40 * (index % 6)), G: 180, B: uint8(255 - 20*(index%12)), A: 255}

	for y := range side {
		for x := range side {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer

	require.NoError(tb, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))

	return pdfwrite.JPEGImage{
		Data:        buf.Bytes(),
		PixelWidth:  side,
		PixelHeight: side,
		ColorSpace:  pdfwrite.DeviceRGB,
	}
}
