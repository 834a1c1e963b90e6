// Package pdfwrite writes PDF documents whose pages each carry one full-page JPEG
// image. Page size is given in points and is written verbatim as the MediaBox,
// independent of the image's pixel size.
package pdfwrite

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	// ErrInvalidPage is returned by AddPage for pages without a usable size or image.
	ErrInvalidPage = errors.New("invalid page")
	// ErrInvalidInfoKey is returned by SetInfo for keys that are not PDF names.
	ErrInvalidInfoKey = errors.New("invalid info key")
	// ErrInvalidInfoValue is returned by SetInfo for values that are not valid UTF-8.
	ErrInvalidInfoValue = errors.New("invalid info value")
)

// ColorSpace is the color space of an embedded JPEG.
type ColorSpace int

const (
	// DeviceRGB is three-channel color.
	DeviceRGB ColorSpace = iota
	// DeviceGray is single-channel luminance.
	DeviceGray
)

func (cs ColorSpace) String() string {
	if cs == DeviceGray {
		return "DeviceGray"
	}

	return "DeviceRGB"
}

// JPEGImage is an encoded image ready to embed as a DCTDecode XObject.
type JPEGImage struct {
	Data        []byte
	PixelWidth  int
	PixelHeight int
	ColorSpace  ColorSpace
}

// ImagePage is a page of Width x Height points filled by Image.
type ImagePage struct {
	Width  float64
	Height float64
	Image  JPEGImage
}

type infoEntry struct {
	key   string
	value string
}

// Writer accumulates pages and information dictionary entries and serializes
// them as a single PDF 1.4 file.
type Writer struct {
	pages []ImagePage
	info  []infoEntry
}

// New returns an empty Writer.
func New() *Writer {
	return &Writer{}
}

// PageCount returns the number of pages added so far.
func (w *Writer) PageCount() int { return len(w.pages) }

// AddPage appends page to the document.
func (w *Writer) AddPage(page ImagePage) error {
	if page.Width <= 0 || page.Height <= 0 {
		return fmt.Errorf("%w: size %gx%g", ErrInvalidPage, page.Width, page.Height)
	}

	if page.Image.PixelWidth <= 0 || page.Image.PixelHeight <= 0 {
		return fmt.Errorf(
			"%w: image is %dx%d pixels",
			ErrInvalidPage,
			page.Image.PixelWidth,
			page.Image.PixelHeight,
		)
	}

	if len(page.Image.Data) == 0 {
		return fmt.Errorf("%w: image data is empty", ErrInvalidPage)
	}

	w.pages = append(w.pages, page)

	return nil
}

// SetInfo sets an information dictionary entry, replacing any previous value
// for key.
func (w *Writer) SetInfo(key, value string) error {
	if !isName(key) {
		return fmt.Errorf("%w: %q", ErrInvalidInfoKey, key)
	}

	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidInfoValue, key)
	}

	for index := range w.info {
		if w.info[index].key == key {
			w.info[index].value = value

			return nil
		}
	}

	w.info = append(w.info, infoEntry{key: key, value: value})

	return nil
}

// WriteTo serializes the document to out.
//
// Object layout: 1 catalog, 2 page tree, then page/content/image triples per
// page, then the information dictionary when present.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	buffered := bufio.NewWriter(out)
	pw := &pdfWriter{w: buffered}

	pageCount := len(w.pages)
	infoNum := 0
	objectCount := 2 + 3*pageCount

	if len(w.info) > 0 {
		objectCount++
		infoNum = objectCount
	}

	pw.offsets = make([]int64, objectCount+1)

	pw.printf("%%PDF-1.4\n%%\xe2\xe3\xcf\xd3\n")

	pw.beginObject(1)
	pw.printf("<< /Type /Catalog /Pages 2 0 R >>\n")
	pw.endObject()

	kids := make([]string, pageCount)
	for index := range w.pages {
		kids[index] = fmt.Sprintf("%d 0 R", pageObjectNum(index))
	}

	pw.beginObject(2)
	pw.printf("<< /Type /Pages /Kids [%s] /Count %d >>\n", strings.Join(kids, " "), pageCount)
	pw.endObject()

	for index, page := range w.pages {
		w.writePage(pw, index, page)
	}

	if infoNum > 0 {
		pw.beginObject(infoNum)
		pw.printf("<<")

		for _, entry := range w.info {
			pw.printf(" /%s %s", entry.key, encodeTextString(entry.value))
		}

		pw.printf(" >>\n")
		pw.endObject()
	}

	xrefOffset := pw.n
	pw.printf("xref\n0 %d\n0000000000 65535 f \n", objectCount+1)

	for num := 1; num <= objectCount; num++ {
		pw.printf("%010d 00000 n \n", pw.offsets[num])
	}

	pw.printf("trailer\n<< /Size %d /Root 1 0 R", objectCount+1)

	if infoNum > 0 {
		pw.printf(" /Info %d 0 R", infoNum)
	}

	pw.printf(" >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	if pw.err != nil {
		return pw.n, pw.err
	}

	if flushErr := buffered.Flush(); flushErr != nil {
		return pw.n, fmt.Errorf("failed to flush PDF output: %w", flushErr)
	}

	return pw.n, nil
}

func (w *Writer) writePage(pw *pdfWriter, index int, page ImagePage) {
	pageNum := pageObjectNum(index)
	contentNum := pageNum + 1
	imageNum := pageNum + 2
	width := formatNumber(page.Width)
	height := formatNumber(page.Height)

	pw.beginObject(pageNum)
	pw.printf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] "+
			"/Resources << /XObject << /Im0 %d 0 R >> >> /Contents %d 0 R >>\n",
		width, height, imageNum, contentNum,
	)
	pw.endObject()

	// The image space is the unit square; scale it onto the whole MediaBox.
	content := fmt.Sprintf("q\n%s 0 0 %s 0 0 cm\n/Im0 Do\nQ\n", width, height)

	pw.beginObject(contentNum)
	pw.printf("<< /Length %d >>\nstream\n", len(content))
	pw.printf("%s", content)
	pw.printf("\nendstream\n")
	pw.endObject()

	img := page.Image

	pw.beginObject(imageNum)
	pw.printf(
		"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s "+
			"/BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n",
		img.PixelWidth, img.PixelHeight, img.ColorSpace, len(img.Data),
	)
	pw.write(img.Data)
	pw.printf("\nendstream\n")
	pw.endObject()
}

func pageObjectNum(index int) int { return 3 + 3*index }

// pdfWriter tracks the byte offset of every object and keeps the first error.
type pdfWriter struct {
	w       io.Writer
	offsets []int64
	n       int64
	err     error
}

func (pw *pdfWriter) write(data []byte) {
	if pw.err != nil {
		return
	}

	written, writeErr := pw.w.Write(data)
	pw.n += int64(written)

	if writeErr != nil {
		pw.err = fmt.Errorf("failed to write PDF output: %w", writeErr)
	}
}

func (pw *pdfWriter) printf(format string, args ...any) {
	pw.write(fmt.Appendf(nil, format, args...))
}

func (pw *pdfWriter) beginObject(num int) {
	pw.offsets[num] = pw.n
	pw.printf("%d 0 obj\n", num)
}

func (pw *pdfWriter) endObject() {
	pw.printf("endobj\n")
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func isName(key string) bool {
	if key == "" {
		return false
	}

	for _, r := range key {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'

		if !isLetter && !isDigit {
			return false
		}
	}

	return true
}

// encodeTextString renders value as a PDF text string: a literal string when it
// is printable ASCII, otherwise UTF-16BE with a byte order mark in hex form.
func encodeTextString(value string) string {
	if isPrintableASCII(value) {
		replacer := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

		return "(" + replacer.Replace(value) + ")"
	}

	var hex strings.Builder

	hex.WriteString("<FEFF")

	for _, unit := range utf16.Encode([]rune(value)) {
		fmt.Fprintf(&hex, "%04X", unit)
	}

	hex.WriteString(">")

	return hex.String()
}

func isPrintableASCII(value string) bool {
	for index := range len(value) {
		if value[index] < 0x20 || value[index] > 0x7e {
			return false
		}
	}

	return true
}
