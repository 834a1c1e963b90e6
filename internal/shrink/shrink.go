// Package shrink reduces PDF size by re-rasterizing every page and embedding the
// result as a JPEG on a page of the same physical size.
package shrink

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/book-expert/logger"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/pdfrender"
	"github.com/book-expert/pdf-tools/internal/pdfwrite"
	"github.com/book-expert/pdf-tools/internal/progress"
)

// Engine shrinks documents. It holds no per-operation state, so one Engine may
// serve concurrent calls that write to distinct output paths.
type Engine struct {
	renderer pdfrender.Renderer
	log      *logger.Logger
}

// New creates an Engine rendering pages with renderer.
func New(renderer pdfrender.Renderer, log *logger.Logger) *Engine {
	return &Engine{renderer: renderer, log: log}
}

// Shrink writes a rasterized copy of inputPath to outputPath and reports the
// sizes before and after. observer receives one update per page.
func (engine *Engine) Shrink(
	ctx context.Context,
	inputPath, outputPath string,
	settings Settings,
	observer progress.Observer,
) (*Report, error) {
	// Step 1: Validate the request.
	validateErr := engine.validate(inputPath, outputPath, settings)
	if validateErr != nil {
		return nil, validateErr
	}

	observer = progress.OrDiscard(observer)

	// Step 2: Open the source and record its size.
	doc, openErr := document.Open(inputPath)
	if openErr != nil {
		return nil, openErr
	}

	originalSize, sizeErr := document.FileSize(inputPath)
	if sizeErr != nil {
		return nil, sizeErr
	}

	engine.log.Info(
		"Shrinking %s: %d pages at %d dpi, quality %d, grayscale %t",
		filepath.Base(inputPath),
		doc.PageCount(),
		settings.DPI,
		settings.Quality,
		settings.Grayscale,
	)

	// Step 3: Re-rasterize every page in order.
	writer := pdfwrite.New()

	for index, page := range doc.Pages {
		pageErr := engine.shrinkPage(ctx, writer, doc, page, settings)
		if pageErr != nil {
			return nil, pageErr
		}

		observer.Progress(index+1, doc.PageCount())
	}

	// Step 4: Carry metadata over and save atomically.
	engine.copyMetadata(writer, doc.Metadata)

	saveErr := document.WriteAtomic(outputPath, func(w io.Writer) error {
		_, writeErr := writer.WriteTo(w)

		return writeErr
	})
	if saveErr != nil {
		return nil, saveErr
	}

	outputSize, sizeErr := document.FileSize(outputPath)
	if sizeErr != nil {
		return nil, sizeErr
	}

	report := &Report{
		InputPath:     inputPath,
		OutputPath:    outputPath,
		OriginalBytes: originalSize,
		OutputBytes:   outputSize,
		Pages:         doc.PageCount(),
	}

	engine.log.Success(
		"Shrunk %s to %s (%.1f%% reduction)",
		filepath.Base(inputPath),
		HumanSize(float64(outputSize)),
		report.SavedPercent(),
	)

	return report, nil
}

func (engine *Engine) validate(inputPath, outputPath string, settings Settings) error {
	if inputPath == "" {
		return document.InvalidParameterf("input path is required")
	}

	if outputPath == "" {
		return document.InvalidParameterf("output path is required")
	}

	if filepath.Clean(inputPath) == filepath.Clean(outputPath) {
		return document.InvalidParameterf("output path must differ from input %s", inputPath)
	}

	return settings.Validate()
}

// shrinkPage renders one page, transforms it and appends it to writer.
func (engine *Engine) shrinkPage(
	ctx context.Context,
	writer *pdfwrite.Writer,
	doc *document.Document,
	page document.Page,
	settings Settings,
) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("shrink of %s canceled: %w", filepath.Base(doc.Path), ctxErr)
	}

	bitmap, renderErr := engine.renderer.RenderPage(ctx, doc.Path, page.Number, settings.DPI)
	if renderErr != nil {
		return fmt.Errorf("failed to render page %d: %w", page.Number, renderErr)
	}

	imagePage, transformErr := TransformPage(page, bitmap, settings)
	if transformErr != nil {
		return transformErr
	}

	addErr := writer.AddPage(imagePage)
	if addErr != nil {
		return fmt.Errorf("failed to add page %d: %w", page.Number, addErr)
	}

	engine.log.Info("Processed page %d/%d", page.Number, doc.PageCount())

	return nil
}

// copyMetadata copies each field on its own; a field that cannot be written is
// skipped with a warning.
func (engine *Engine) copyMetadata(writer *pdfwrite.Writer, meta document.Metadata) {
	for _, field := range meta.Fields() {
		setErr := writer.SetInfo(field.Key, field.Value)
		if setErr != nil {
			engine.log.Warn("Skipping metadata field %s: %v", field.Key, setErr)
		}
	}
}
