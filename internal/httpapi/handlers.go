package httpapi

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/shrink"
	"github.com/book-expert/pdf-tools/internal/split"
)

const (
	formFieldPDF = "pdf"
	dirMode      = 0o750
	maxErrorLen  = 200
)

var errNotPDF = errors.New("invalid PDF file: header does not match")

// HandleShrink shrinks the uploaded "pdf" with the "preset" or "dpi"/"quality"
// and "grayscale" form values and returns the shrunk document.
func (handler *Handler) HandleShrink(c *gin.Context) {
	settings, settingsErr := shrinkSettings(c)
	if settingsErr != nil {
		handler.fail(c, settingsErr)

		return
	}

	workDir, inFile, header, ok := handler.receiveSingle(c)
	if !ok {
		return
	}
	defer os.RemoveAll(workDir)

	outFile := filepath.Join(workDir, "output.pdf")

	report, shrinkErr := handler.shrinker.Shrink(c.Request.Context(), inFile, outFile, settings, nil)
	if shrinkErr != nil {
		handler.fail(c, shrinkErr)

		return
	}

	c.Header("X-Original-Size", strconv.FormatInt(report.OriginalBytes, 10))
	c.Header("X-Output-Size", strconv.FormatInt(report.OutputBytes, 10))
	c.Header("X-Saved-Percent", strconv.FormatFloat(report.SavedPercent(), 'f', 1, 64))
	handler.sendPDF(c, outFile, downloadName(header.Filename, "shrink", ".pdf"))
}

// HandleSplit splits the uploaded "pdf" by "every" or "split_at" and returns the
// parts as a zip archive.
func (handler *Handler) HandleSplit(c *gin.Context) {
	boundary, boundaryErr := splitBoundary(c)
	if boundaryErr != nil {
		handler.fail(c, boundaryErr)

		return
	}

	workDir, inFile, header, ok := handler.receiveSingle(c)
	if !ok {
		return
	}
	defer os.RemoveAll(workDir)

	prefix := c.PostForm("prefix")
	if prefix == "" {
		prefix = document.BaseName(sanitizeFilename(header.Filename))
	}

	parts, splitErr := handler.splitter.Split(
		inFile,
		filepath.Join(workDir, "parts"),
		boundary,
		prefix,
		nil,
	)
	if splitErr != nil {
		handler.fail(c, splitErr)

		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", downloadName(header.Filename, "parts", ".zip")),
	)
	c.Status(http.StatusOK)

	zipErr := writeZip(c.Writer, parts)
	if zipErr != nil {
		handler.log.Error("Failed to stream split archive: %v", zipErr)
	}
}

// HandleMerge merges the uploaded "pdf" files in the order they were sent.
func (handler *Handler) HandleMerge(c *gin.Context) {
	form, formErr := c.MultipartForm()
	if formErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No PDF files provided"})

		return
	}

	headers := form.File[formFieldPDF]
	if len(headers) < 2 {
		handler.fail(c, document.InvalidParameterf(
			"need at least 2 PDF files to merge, got %d", len(headers)))

		return
	}

	workDir, dirErr := handler.newWorkDir()
	if dirErr != nil {
		handler.fail(c, dirErr)

		return
	}
	defer os.RemoveAll(workDir)

	inputs := make([]string, len(headers))

	for index, header := range headers {
		path := filepath.Join(workDir, fmt.Sprintf("input_%03d.pdf", index+1))

		saveErr := handler.saveUpload(header, path)
		if saveErr != nil {
			handler.fail(c, saveErr)

			return
		}

		inputs[index] = path
	}

	outFile := filepath.Join(workDir, "merged.pdf")

	mergeErr := handler.merger.Merge(outFile, inputs, nil)
	if mergeErr != nil {
		handler.fail(c, mergeErr)

		return
	}

	handler.sendPDF(c, outFile, downloadName(headers[0].Filename, "merged", ".pdf"))
}

// receiveSingle saves the "pdf" upload into a fresh work directory. On failure
// it has already written the error response.
func (handler *Handler) receiveSingle(
	c *gin.Context,
) (string, string, *multipart.FileHeader, bool) {
	header, formErr := c.FormFile(formFieldPDF)
	if formErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No PDF file provided"})

		return "", "", nil, false
	}

	workDir, dirErr := handler.newWorkDir()
	if dirErr != nil {
		handler.fail(c, dirErr)

		return "", "", nil, false
	}

	inFile := filepath.Join(workDir, "input.pdf")

	saveErr := handler.saveUpload(header, inFile)
	if saveErr != nil {
		_ = os.RemoveAll(workDir)
		handler.fail(c, saveErr)

		return "", "", nil, false
	}

	return workDir, inFile, header, true
}

func (handler *Handler) newWorkDir() (string, error) {
	mkdirErr := os.MkdirAll(handler.config.TempDir, dirMode)
	if mkdirErr != nil {
		return "", document.IOErrorf(mkdirErr, "failed to create temp directory")
	}

	workDir, tempErr := os.MkdirTemp(handler.config.TempDir, "request-*")
	if tempErr != nil {
		return "", document.IOErrorf(tempErr, "failed to create request directory")
	}

	return workDir, nil
}

// saveUpload checks the size and PDF header of an upload and copies it to path.
func (handler *Handler) saveUpload(header *multipart.FileHeader, path string) error {
	if header.Size > handler.config.MaxFileSize {
		return document.InvalidInputf(
			"file size %d exceeds maximum allowed %d bytes",
			header.Size,
			handler.config.MaxFileSize,
		)
	}

	file, openErr := header.Open()
	if openErr != nil {
		return document.IOErrorf(openErr, "failed to read upload %s", header.Filename)
	}
	defer file.Close()

	magic := make([]byte, 4)

	n, readErr := io.ReadFull(file, magic)
	if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
		return document.IOErrorf(readErr, "failed to read file header")
	}

	if n >= len(magic) && string(magic) != "%PDF" {
		return fmt.Errorf("%w: %w", document.ErrInvalidInput, errNotPDF)
	}

	_, seekErr := file.Seek(0, io.SeekStart)
	if seekErr != nil {
		return document.IOErrorf(seekErr, "failed to reset file position")
	}

	out, createErr := os.Create(path)
	if createErr != nil {
		return document.IOErrorf(createErr, "failed to save upload")
	}

	_, copyErr := io.Copy(out, file)
	closeErr := out.Close()

	if copyErr != nil {
		return document.IOErrorf(copyErr, "failed to save upload")
	}

	if closeErr != nil {
		return document.IOErrorf(closeErr, "failed to save upload")
	}

	return nil
}

func (handler *Handler) sendPDF(c *gin.Context, path, filename string) {
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.File(path)
}

// fail maps err to a status code and writes a JSON error body.
func (handler *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		handler.log.Error("PDF operation error: %v", err)
	} else {
		handler.log.Warn("Rejected request: %v", err)
	}

	message := err.Error()
	if len(message) > maxErrorLen {
		message = message[:maxErrorLen] + "..."
	}

	c.JSON(status, gin.H{"error": message})
}

func statusFor(err error) int {
	if errors.Is(err, document.ErrInvalidParameter) || errors.Is(err, document.ErrInvalidInput) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

func shrinkSettings(c *gin.Context) (shrink.Settings, error) {
	preset, presetErr := shrink.ParsePreset(c.PostForm("preset"))
	if presetErr != nil {
		return shrink.Settings{}, presetErr
	}

	dpi, dpiErr := formInt(c, "dpi")
	if dpiErr != nil {
		return shrink.Settings{}, dpiErr
	}

	quality, qualityErr := formInt(c, "quality")
	if qualityErr != nil {
		return shrink.Settings{}, qualityErr
	}

	grayscale, grayErr := formBool(c, "grayscale")
	if grayErr != nil {
		return shrink.Settings{}, grayErr
	}

	return shrink.ResolveSettings(preset, dpi, quality, grayscale)
}

func splitBoundary(c *gin.Context) (split.Boundary, error) {
	everyValue := strings.TrimSpace(c.PostForm("every"))
	atValue := strings.TrimSpace(c.PostForm("split_at"))

	switch {
	case everyValue != "" && atValue != "":
		return split.Boundary{}, document.InvalidParameterf("use either every or split_at, not both")
	case everyValue != "":
		every, convErr := strconv.Atoi(everyValue)
		if convErr != nil {
			return split.Boundary{}, document.InvalidParameterf("invalid every %q", everyValue)
		}

		return split.Every(every), nil
	case atValue != "":
		pages, parseErr := split.ParsePageList(atValue)
		if parseErr != nil {
			return split.Boundary{}, parseErr
		}

		return split.At(pages...), nil
	default:
		return split.Boundary{}, document.InvalidParameterf("one of every or split_at is required")
	}
}

func formInt(c *gin.Context, key string) (int, error) {
	value := strings.TrimSpace(c.PostForm(key))
	if value == "" {
		return 0, nil
	}

	parsed, convErr := strconv.Atoi(value)
	if convErr != nil {
		return 0, document.InvalidParameterf("invalid %s %q", key, value)
	}

	if parsed == 0 {
		return 0, document.InvalidParameterf("%s must be positive", key)
	}

	return parsed, nil
}

func formBool(c *gin.Context, key string) (bool, error) {
	value := strings.TrimSpace(c.PostForm(key))
	if value == "" {
		return false, nil
	}

	if strings.EqualFold(value, "on") {
		return true, nil
	}

	parsed, convErr := strconv.ParseBool(value)
	if convErr != nil {
		return false, document.InvalidParameterf("invalid %s %q", key, value)
	}

	return parsed, nil
}

func writeZip(w io.Writer, paths []string) error {
	archive := zip.NewWriter(w)

	for _, path := range paths {
		entry, createErr := archive.Create(filepath.Base(path))
		if createErr != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filepath.Base(path), createErr)
		}

		copyErr := copyFile(entry, path)
		if copyErr != nil {
			return copyErr
		}
	}

	closeErr := archive.Close()
	if closeErr != nil {
		return fmt.Errorf("failed to finish archive: %w", closeErr)
	}

	return nil
}

func copyFile(w io.Writer, path string) error {
	file, openErr := os.Open(path)
	if openErr != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), openErr)
	}
	defer file.Close()

	_, copyErr := io.Copy(w, file)
	if copyErr != nil {
		return fmt.Errorf("failed to copy %s: %w", filepath.Base(path), copyErr)
	}

	return nil
}

// downloadName derives a download file name from the uploaded name.
func downloadName(uploaded, suffix, ext string) string {
	base := document.BaseName(sanitizeFilename(uploaded))
	if base == "" || base == "." {
		base = "document"
	}

	return base + "_" + suffix + ext
}

// sanitizeFilename removes path traversal attempts and dangerous characters.
func sanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.TrimSpace(filepath.Base(filename))

	if filename == "" || filename == "." {
		filename = "document.pdf"
	}

	return filename
}
