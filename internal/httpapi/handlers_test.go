package httpapi_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/httpapi"
	"github.com/book-expert/pdf-tools/internal/merge"
	"github.com/book-expert/pdf-tools/internal/shrink"
	"github.com/book-expert/pdf-tools/internal/split"
	"github.com/book-expert/pdf-tools/internal/testpdf"
)

type solidRenderer struct{}

func (solidRenderer) RenderPage(_ context.Context, _ string, _, dpi int) (image.Image, error) {
	side := max(dpi/4, 1)
	img := image.NewRGBA(image.Rect(0, 0, side, side))

	for y := range side {
		for x := range side {
			img.Set(x, y, color.RGBA{R: 10, G: 200, B: 90, A: 255})
		}
	}

	return img, nil
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type upload struct {
	name string
	data []byte
}

func newRouter(t *testing.T, tempDir string, maxFileSize int64) *gin.Engine {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	handler := httpapi.NewHandler(
		&httpapi.Config{Port: "0", TempDir: tempDir, MaxFileSize: maxFileSize},
		shrink.New(solidRenderer{}, log),
		split.New(log),
		merge.New(log),
		log,
	)

	router := gin.New()
	httpapi.SetupRoutes(router, handler)

	return router
}

func fixture(t *testing.T, name string, sizes []testpdf.Size, info map[string]string) upload {
	t.Helper()

	path := testpdf.Write(t, filepath.Join(t.TempDir(), name), sizes, info)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return upload{name: name, data: data}
}

func post(
	t *testing.T,
	router *gin.Engine,
	target string,
	fields map[string]string,
	files ...upload,
) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}

	for _, file := range files {
		part, err := writer.CreateFormFile("pdf", file.name)
		require.NoError(t, err)

		_, err = part.Write(file.data)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	return recorder
}

func openBody(t *testing.T, body []byte) *document.Document {
	t.Helper()

	path := filepath.Join(t.TempDir(), "body.pdf")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	doc, err := document.Open(path)
	require.NoError(t, err)

	return doc
}

func assertNoLeftovers(t *testing.T, tempDir string) {
	t.Helper()

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router := newRouter(t, t.TempDir(), 1<<20)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "healthy", payload["status"])
}

func TestHandleShrink(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	router := newRouter(t, tempDir, 1<<20)
	input := fixture(t, "scan.pdf", testpdf.Distinct(2, 144), map[string]string{"Title": "Scan"})

	recorder := post(t, router, "/api/pdf/shrink",
		map[string]string{"preset": "aggressive", "grayscale": "true"}, input)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	assert.Equal(t, "application/pdf", recorder.Header().Get("Content-Type"))
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "scan_shrink.pdf")
	assert.Equal(t, strconv.Itoa(len(input.data)), recorder.Header().Get("X-Original-Size"))
	assert.NotEmpty(t, recorder.Header().Get("X-Output-Size"))
	assert.NotEmpty(t, recorder.Header().Get("X-Saved-Percent"))

	doc := openBody(t, recorder.Body.Bytes())
	require.Equal(t, 2, doc.PageCount())
	assert.InDelta(t, 145, doc.Pages[1].Width, 0.01)
	assert.Equal(t, "Scan", doc.Metadata.Title)

	assertNoLeftovers(t, tempDir)
}

func TestHandleShrink_Rejects(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	router := newRouter(t, tempDir, 1<<20)
	input := fixture(t, "scan.pdf", testpdf.Distinct(1, 100), nil)

	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
	}{
		{name: "preset with dpi", fields: map[string]string{"preset": "light", "dpi": "90"}, files: []upload{input}},
		{name: "quality out of range", fields: map[string]string{"quality": "101"}, files: []upload{input}},
		{name: "unknown preset", fields: map[string]string{"preset": "max"}, files: []upload{input}},
		{name: "no file", fields: map[string]string{}},
		{name: "not a pdf", fields: map[string]string{}, files: []upload{{name: "a.pdf", data: []byte("hello world")}}},
	}

	for _, tc := range tests {
		recorder := post(t, router, "/api/pdf/shrink", tc.fields, tc.files...)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, tc.name)
	}

	assertNoLeftovers(t, tempDir)
}

func TestHandleShrink_TooLarge(t *testing.T) {
	t.Parallel()

	router := newRouter(t, t.TempDir(), 16)
	input := fixture(t, "scan.pdf", testpdf.Distinct(1, 100), nil)

	recorder := post(t, router, "/api/pdf/shrink", nil, input)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "exceeds maximum")
}

func TestHandleSplit(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	router := newRouter(t, tempDir, 1<<20)
	input := fixture(t, "book.pdf", testpdf.Distinct(10, 100), nil)

	recorder := post(t, router, "/api/pdf/split", map[string]string{"split_at": "5,10"}, input)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "application/zip", recorder.Header().Get("Content-Type"))

	body := recorder.Body.Bytes()
	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	names := make([]string, len(archive.File))
	for index, file := range archive.File {
		names[index] = file.Name
	}

	assert.Equal(t, []string{"book_part01.pdf", "book_part02.pdf", "book_part03.pdf"}, names)

	assertNoLeftovers(t, tempDir)
}

func TestHandleSplit_Rejects(t *testing.T) {
	t.Parallel()

	router := newRouter(t, t.TempDir(), 1<<20)
	input := fixture(t, "book.pdf", testpdf.Distinct(4, 100), nil)

	for _, fields := range []map[string]string{
		{},
		{"every": "2", "split_at": "3"},
		{"every": "zero"},
		{"every": "0"},
		{"split_at": "1"},
		{"split_at": "2,x"},
		{"every": "2", "prefix": "../../etc"},
	} {
		recorder := post(t, router, "/api/pdf/split", fields, input)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, fields)
	}
}

func TestHandleMerge(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	router := newRouter(t, tempDir, 1<<20)
	first := fixture(t, "a.pdf", testpdf.Distinct(3, 100), map[string]string{"Author": "A"})
	second := fixture(t, "b.pdf", testpdf.Distinct(3, 200), map[string]string{"Author": "B"})

	recorder := post(t, router, "/api/pdf/merge", nil, first, second)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	doc := openBody(t, recorder.Body.Bytes())
	require.Equal(t, 6, doc.PageCount())
	assert.InDelta(t, 100, doc.Pages[0].Width, 0.01)
	assert.InDelta(t, 202, doc.Pages[5].Width, 0.01)
	assert.Equal(t, "A", doc.Metadata.Author)

	assertNoLeftovers(t, tempDir)

	recorder = post(t, router, "/api/pdf/merge", nil, first)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
