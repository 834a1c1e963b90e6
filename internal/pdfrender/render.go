// Package pdfrender rasterizes single PDF pages into in-memory bitmaps by
// running Ghostscript.
package pdfrender

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

var (
	// ErrPDFPathRequired is returned when no PDF path is given.
	ErrPDFPathRequired = errors.New("pdf path is required")
	// ErrInvalidPage is returned for page numbers below 1.
	ErrInvalidPage = errors.New("page number must be positive")
	// ErrInvalidDPI is returned for resolutions below 1.
	ErrInvalidDPI = errors.New("dpi must be positive")
	// ErrRenderFailed is returned when Ghostscript fails or produces no usable image.
	ErrRenderFailed = errors.New("render failed")
)

// Renderer produces a bitmap of one page of a PDF at a resolution.
type Renderer interface {
	RenderPage(ctx context.Context, pdfPath string, page, dpi int) (image.Image, error)
}

// Options holds the configurable parameters of a Ghostscript renderer.
type Options struct {
	// GhostscriptPath is the executable to run. Defaults to "gs".
	GhostscriptPath string
	// TempDir is where intermediate PNG files are written. Defaults to os.TempDir().
	TempDir string
}

const defaultGhostscriptPath = "gs"

// Ghostscript renders pages by invoking the Ghostscript executable once per page.
type Ghostscript struct {
	executor CommandExecutor
	config   Options
}

// NewGhostscript creates a Ghostscript renderer, filling zero-value options with
// defaults.
func NewGhostscript(opts Options) *Ghostscript {
	if opts.GhostscriptPath == "" {
		opts.GhostscriptPath = defaultGhostscriptPath
	}

	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}

	return &Ghostscript{
		config:   opts,
		executor: &defaultExecutor{},
	}
}

// RenderPage renders page (1-based) of pdfPath at dpi and returns the decoded
// bitmap. The intermediate PNG is removed before returning.
func (renderer *Ghostscript) RenderPage(
	ctx context.Context,
	pdfPath string,
	page, dpi int,
) (image.Image, error) {
	// Step 1: Validate the request before spawning anything.
	if pdfPath == "" {
		return nil, ErrPDFPathRequired
	}

	if page <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	if dpi <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDPI, dpi)
	}

	// Step 2: Give Ghostscript a private directory for its output.
	workDir, mkdirErr := os.MkdirTemp(renderer.config.TempDir, "pdfrender-*")
	if mkdirErr != nil {
		return nil, fmt.Errorf("failed to create render directory: %w", mkdirErr)
	}
	defer os.RemoveAll(workDir)

	outPath := filepath.Join(workDir, fmt.Sprintf("page_%04d.png", page))

	// Step 3: Render the page.
	args := buildGhostscriptArgs(dpi, page, outPath, pdfPath)

	outputBytes, execErr := renderer.executor.RunCombined(
		ctx,
		renderer.config.GhostscriptPath,
		args...)
	if execErr != nil {
		return nil, fmt.Errorf(
			"%w: page %d of %s: ghostscript execution failed: %w. Output: %s",
			ErrRenderFailed,
			page,
			filepath.Base(pdfPath),
			execErr,
			string(outputBytes),
		)
	}

	// Step 4: Decode the PNG into memory.
	return decodePNG(outPath, page)
}

func decodePNG(path string, page int) (image.Image, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf(
			"%w: page %d: ghostscript produced no image: %w",
			ErrRenderFailed,
			page,
			openErr,
		)
	}
	defer file.Close()

	img, decodeErr := png.Decode(file)
	if decodeErr != nil {
		return nil, fmt.Errorf(
			"%w: page %d: cannot decode rendered image: %w",
			ErrRenderFailed,
			page,
			decodeErr,
		)
	}

	return img, nil
}
