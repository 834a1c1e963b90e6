package shrink

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/pdfwrite"
)

// TransformPage encodes bitmap as a JPEG per settings and returns the output page
// for the source page: same size in points, the image stretched over all of it.
// It performs no I/O.
func TransformPage(
	page document.Page,
	bitmap image.Image,
	settings Settings,
) (pdfwrite.ImagePage, error) {
	if validateErr := settings.Validate(); validateErr != nil {
		return pdfwrite.ImagePage{}, validateErr
	}

	if bitmap == nil || bitmap.Bounds().Empty() {
		return pdfwrite.ImagePage{}, fmt.Errorf("page %d: rendered bitmap is empty", page.Number)
	}

	colorSpace := pdfwrite.DeviceRGB
	source := toRGB(bitmap)

	if settings.Grayscale {
		colorSpace = pdfwrite.DeviceGray
		source = toGray(bitmap)
	}

	var buf bytes.Buffer

	encodeErr := jpeg.Encode(&buf, source, &jpeg.Options{Quality: settings.Quality})
	if encodeErr != nil {
		return pdfwrite.ImagePage{}, fmt.Errorf(
			"page %d: failed to encode JPEG: %w",
			page.Number,
			encodeErr,
		)
	}

	bounds := source.Bounds()

	return pdfwrite.ImagePage{
		Width:  page.Width,
		Height: page.Height,
		Image: pdfwrite.JPEGImage{
			Data:        buf.Bytes(),
			PixelWidth:  bounds.Dx(),
			PixelHeight: bounds.Dy(),
			ColorSpace:  colorSpace,
		},
	}, nil
}

func toGray(src image.Image) image.Image {
	if gray, ok := src.(*image.Gray); ok {
		return gray
	}

	bounds := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), src, bounds.Min, draw.Src)

	return gray
}

// toRGB makes sure single-channel bitmaps are encoded as three-component JPEGs.
func toRGB(src image.Image) image.Image {
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		bounds := src.Bounds()
		rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)

		return rgba
	default:
		return src
	}
}
