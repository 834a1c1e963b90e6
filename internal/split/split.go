// Package split partitions a PDF into several documents by contiguous page
// ranges.
package split

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/progress"
)

// Engine splits documents.
type Engine struct {
	log *logger.Logger
}

// New creates an Engine.
func New(log *logger.Logger) *Engine {
	return &Engine{log: log}
}

// PartName returns the file name of the 1-based part index, e.g. "book_part03.pdf".
func PartName(prefix string, index int) string {
	return fmt.Sprintf("%s_part%02d.pdf", prefix, index)
}

// Split writes one document per range of boundary into outputDir and returns
// their paths in order. An empty outputDir means the input's directory and an
// empty prefix means the input's base name. observer receives one update per
// part written. Parts written before a failure are left in place.
func (engine *Engine) Split(
	inputPath, outputDir string,
	boundary Boundary,
	prefix string,
	observer progress.Observer,
) ([]string, error) {
	observer = progress.OrDiscard(observer)

	// Step 1: Resolve defaults and validate the naming.
	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}

	if prefix == "" {
		prefix = document.BaseName(inputPath)
	}

	if strings.ContainsAny(prefix, `/\`) || strings.ContainsRune(prefix, os.PathSeparator) {
		return nil, document.InvalidParameterf("prefix %q must not contain a path separator", prefix)
	}

	// Step 2: Open the document and plan the parts.
	doc, source, openErr := document.Load(inputPath)
	if openErr != nil {
		return nil, openErr
	}

	ranges, rangesErr := boundary.Ranges(doc.PageCount())
	if rangesErr != nil {
		return nil, rangesErr
	}

	if dirErr := document.EnsureDir(outputDir); dirErr != nil {
		return nil, dirErr
	}

	engine.log.Info(
		"Splitting %s (%d pages) %s into %d parts",
		filepath.Base(inputPath),
		doc.PageCount(),
		boundary,
		len(ranges),
	)

	// Step 3: Extract and write each part.
	paths := make([]string, 0, len(ranges))

	for index, pageRange := range ranges {
		partPath := filepath.Join(outputDir, PartName(prefix, index+1))

		writeErr := writePart(source, pageRange, partPath)
		if writeErr != nil {
			return paths, writeErr
		}

		paths = append(paths, partPath)
		observer.Progress(index+1, len(ranges))
		engine.log.Info("Wrote %s with pages %s", filepath.Base(partPath), pageRange)
	}

	engine.log.Success("Split %s into %d parts", filepath.Base(inputPath), len(paths))

	return paths, nil
}

// writePart extracts pageRange verbatim from the parsed source and saves it at
// partPath. source is shared by every part and is only read.
func writePart(source *model.Context, pageRange PageRange, partPath string) error {
	part, extractErr := pdfcpu.ExtractPages(source, pageRange.Pages(), false)
	if extractErr != nil {
		return fmt.Errorf("failed to extract pages %s: %w", pageRange, extractErr)
	}

	return document.WriteAtomic(partPath, func(w io.Writer) error {
		return api.WriteContext(part, w)
	})
}
