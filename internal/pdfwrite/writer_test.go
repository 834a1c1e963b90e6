package pdfwrite_test

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/pdfwrite"
)

func grayJPEG() pdfwrite.JPEGImage {
	img := image.NewGray(image.Rect(0, 0, 4, 3))

	var buf bytes.Buffer
	if encodeErr := jpeg.Encode(&buf, img, nil); encodeErr != nil {
		panic(encodeErr)
	}

	return pdfwrite.JPEGImage{
		Data:        buf.Bytes(),
		PixelWidth:  4,
		PixelHeight: 3,
		ColorSpace:  pdfwrite.DeviceGray,
	}
}

func TestAddPage_Validation(t *testing.T) {
	t.Parallel()

	writer := pdfwrite.New()

	require.ErrorIs(t, writer.AddPage(pdfwrite.ImagePage{Width: 0, Height: 10, Image: grayJPEG()}),
		pdfwrite.ErrInvalidPage)
	require.ErrorIs(t, writer.AddPage(pdfwrite.ImagePage{Width: 10, Height: 10}),
		pdfwrite.ErrInvalidPage)

	noData := grayJPEG()
	noData.Data = nil
	require.ErrorIs(t, writer.AddPage(pdfwrite.ImagePage{Width: 10, Height: 10, Image: noData}),
		pdfwrite.ErrInvalidPage)

	require.NoError(t, writer.AddPage(pdfwrite.ImagePage{Width: 10, Height: 10, Image: grayJPEG()}))
	assert.Equal(t, 1, writer.PageCount())
}

func TestSetInfo_Validation(t *testing.T) {
	t.Parallel()

	writer := pdfwrite.New()

	require.ErrorIs(t, writer.SetInfo("", "x"), pdfwrite.ErrInvalidInfoKey)
	require.ErrorIs(t, writer.SetInfo("Bad Key", "x"), pdfwrite.ErrInvalidInfoKey)
	require.ErrorIs(t, writer.SetInfo("Title", "\xff\xfe"), pdfwrite.ErrInvalidInfoValue)
	require.NoError(t, writer.SetInfo("Title", "first"))
	require.NoError(t, writer.SetInfo("Title", "second"))

	require.NoError(t, writer.AddPage(pdfwrite.ImagePage{Width: 10, Height: 10, Image: grayJPEG()}))

	var buf bytes.Buffer

	_, err := writer.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(buf.String(), "/Title"))
	assert.Contains(t, buf.String(), "/Title (second)")
}

func TestWriteTo_Layout(t *testing.T) {
	t.Parallel()

	writer := pdfwrite.New()
	require.NoError(t, writer.AddPage(pdfwrite.ImagePage{Width: 595.5, Height: 842, Image: grayJPEG()}))

	var buf bytes.Buffer

	written, err := writer.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), written)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "%PDF-1.4\n"))
	assert.True(t, strings.HasSuffix(out, "%%EOF\n"))
	assert.Contains(t, out, "/MediaBox [0 0 595.5 842]")
	assert.Contains(t, out, "595.5 0 0 842 0 0 cm")
	assert.Contains(t, out, "/ColorSpace /DeviceGray")
	assert.Contains(t, out, "/Filter /DCTDecode")
	assert.NotContains(t, out, "/Info")
}

func TestWriteTo_ReadableByPdfcpu(t *testing.T) {
	t.Parallel()

	writer := pdfwrite.New()
	require.NoError(t, writer.AddPage(pdfwrite.ImagePage{Width: 300, Height: 400, Image: grayJPEG()}))
	require.NoError(t, writer.AddPage(pdfwrite.ImagePage{Width: 842, Height: 595, Image: grayJPEG()}))
	require.NoError(t, writer.SetInfo("Title", "Plain (parens) \\ title"))
	require.NoError(t, writer.SetInfo("Author", "Zoë Ünicode"))

	var buf bytes.Buffer

	_, err := writer.WriteTo(&buf)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	doc, openErr := document.Open(path)
	require.NoError(t, openErr)
	require.Equal(t, 2, doc.PageCount())
	assert.InDelta(t, 300, doc.Pages[0].Width, 0.01)
	assert.InDelta(t, 400, doc.Pages[0].Height, 0.01)
	assert.InDelta(t, 842, doc.Pages[1].Width, 0.01)
	assert.InDelta(t, 595, doc.Pages[1].Height, 0.01)
	assert.Equal(t, "Plain (parens) \\ title", doc.Metadata.Title)
	assert.Equal(t, "Zoë Ünicode", doc.Metadata.Author)
}
