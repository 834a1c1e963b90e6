package shrink_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/pdfwrite"
	"github.com/book-expert/pdf-tools/internal/shrink"
)

func colorBitmap(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 200, A: 255})
		}
	}

	return img
}

func TestTransformPage_Color(t *testing.T) {
	t.Parallel()

	page := document.Page{Number: 1, Width: 595.3, Height: 841.9}

	out, err := shrink.TransformPage(page, colorBitmap(40, 30), shrink.Settings{DPI: 72, Quality: 80})
	require.NoError(t, err)

	assert.InDelta(t, 595.3, out.Width, 0)
	assert.InDelta(t, 841.9, out.Height, 0)
	assert.Equal(t, pdfwrite.DeviceRGB, out.Image.ColorSpace)
	assert.Equal(t, 40, out.Image.PixelWidth)
	assert.Equal(t, 30, out.Image.PixelHeight)

	cfg, decodeErr := jpeg.DecodeConfig(bytes.NewReader(out.Image.Data))
	require.NoError(t, decodeErr)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, color.YCbCrModel, cfg.ColorModel)
}

func TestTransformPage_Grayscale(t *testing.T) {
	t.Parallel()

	page := document.Page{Number: 2, Width: 100, Height: 100}

	out, err := shrink.TransformPage(
		page,
		colorBitmap(16, 16),
		shrink.Settings{DPI: 72, Quality: 50, Grayscale: true},
	)
	require.NoError(t, err)
	assert.Equal(t, pdfwrite.DeviceGray, out.Image.ColorSpace)

	cfg, decodeErr := jpeg.DecodeConfig(bytes.NewReader(out.Image.Data))
	require.NoError(t, decodeErr)
	assert.Equal(t, color.GrayModel, cfg.ColorModel)
}

func TestTransformPage_GrayBitmapInColorMode(t *testing.T) {
	t.Parallel()

	gray := image.NewGray(image.Rect(0, 0, 8, 8))

	out, err := shrink.TransformPage(
		document.Page{Number: 1, Width: 10, Height: 10},
		gray,
		shrink.Settings{DPI: 72, Quality: 60},
	)
	require.NoError(t, err)
	assert.Equal(t, pdfwrite.DeviceRGB, out.Image.ColorSpace)

	cfg, decodeErr := jpeg.DecodeConfig(bytes.NewReader(out.Image.Data))
	require.NoError(t, decodeErr)
	assert.Equal(t, color.YCbCrModel, cfg.ColorModel)
}

func TestTransformPage_QualityBounds(t *testing.T) {
	t.Parallel()

	page := document.Page{Number: 1, Width: 50, Height: 50}
	bitmap := colorBitmap(32, 32)

	low, err := shrink.TransformPage(page, bitmap, shrink.Settings{DPI: 72, Quality: 1})
	require.NoError(t, err)

	high, err := shrink.TransformPage(page, bitmap, shrink.Settings{DPI: 72, Quality: 100})
	require.NoError(t, err)

	assert.Less(t, len(low.Image.Data), len(high.Image.Data))
}

func TestTransformPage_Errors(t *testing.T) {
	t.Parallel()

	page := document.Page{Number: 1, Width: 50, Height: 50}

	_, err := shrink.TransformPage(page, colorBitmap(4, 4), shrink.Settings{DPI: 72, Quality: 0})
	require.ErrorIs(t, err, document.ErrInvalidParameter)

	_, err = shrink.TransformPage(page, nil, shrink.DefaultSettings())
	require.Error(t, err)

	_, err = shrink.TransformPage(page, image.NewRGBA(image.Rectangle{}), shrink.DefaultSettings())
	require.Error(t, err)
}
