// Package merge concatenates PDF documents in order into a single document.
package merge

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/pdfwrite"
	"github.com/book-expert/pdf-tools/internal/progress"
)

const minInputs = 2

var errNoCatalog = errors.New("merged document has no catalog")

// Engine merges documents.
type Engine struct {
	log *logger.Logger
}

// New creates an Engine.
func New(log *logger.Logger) *Engine {
	return &Engine{log: log}
}

// Merge writes the pages of inputPaths, in order, to outputPath. The output takes
// the metadata of the first input. Blank entries in inputPaths are ignored and at
// least two inputs must remain. Every input is validated before anything is
// written, and on failure no file is left at outputPath. observer receives one
// update per input.
func (engine *Engine) Merge(
	outputPath string,
	inputPaths []string,
	observer progress.Observer,
) error {
	observer = progress.OrDiscard(observer)

	// Step 1: Validate the plan.
	if outputPath == "" {
		return document.InvalidParameterf("output path is required")
	}

	inputs := nonBlank(inputPaths)
	if len(inputs) < minInputs {
		return document.InvalidParameterf(
			"need at least %d input PDFs to merge, got %d",
			minInputs,
			len(inputs),
		)
	}

	// Step 2: Open every input before writing anything.
	totalPages := 0

	var firstMetadata document.Metadata

	for index, inputPath := range inputs {
		doc, openErr := document.Open(inputPath)
		if openErr != nil {
			return openErr
		}

		if index == 0 {
			firstMetadata = doc.Metadata
		}

		totalPages += doc.PageCount()
	}

	engine.log.Info(
		"Merging %d documents (%d pages) into %s",
		len(inputs),
		totalPages,
		filepath.Base(outputPath),
	)

	// Step 3: Build the output beside its final path and move it into place.
	tmpPath, tmpErr := document.CreateTemp(outputPath)
	if tmpErr != nil {
		return tmpErr
	}

	buildErr := engine.build(tmpPath, inputs, firstMetadata, observer)
	if buildErr != nil {
		document.Discard(tmpPath)

		return buildErr
	}

	commitErr := document.Commit(tmpPath, outputPath)
	if commitErr != nil {
		return commitErr
	}

	engine.log.Success("Merged %d documents into %s", len(inputs), outputPath)

	return nil
}

// build copies the first input to tmpPath, appends the others one by one and
// then restores the first input's information dictionary.
func (engine *Engine) build(
	tmpPath string,
	inputs []string,
	meta document.Metadata,
	observer progress.Observer,
) error {
	first, readErr := os.ReadFile(inputs[0])
	if readErr != nil {
		return fmt.Errorf("%w: cannot read %s: %w", document.ErrInvalidInput, inputs[0], readErr)
	}

	writeErr := os.WriteFile(tmpPath, first, 0o600)
	if writeErr != nil {
		return document.IOErrorf(writeErr, "failed to write %s", tmpPath)
	}

	observer.Progress(1, len(inputs))

	conf := mergeConfiguration()

	for index, inputPath := range inputs[1:] {
		appendErr := api.MergeAppendFile([]string{inputPath}, tmpPath, false, conf)
		if appendErr != nil {
			return fmt.Errorf("failed to append %s: %w", filepath.Base(inputPath), appendErr)
		}

		observer.Progress(index+2, len(inputs))
		engine.log.Info("Appended %s", filepath.Base(inputPath))
	}

	return engine.restoreInfo(tmpPath, meta)
}

// mergeConfiguration writes classic cross-reference tables so restoreInfo can
// chain its update onto them.
func mergeConfiguration() *model.Configuration {
	conf := document.NewConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	return conf
}

// restoreInfo appends an incremental update carrying meta as the information
// dictionary. pdfcpu stamps its own Producer and dates on every write.
func (engine *Engine) restoreInfo(tmpPath string, meta document.Metadata) error {
	fields := meta.Fields()
	if len(fields) == 0 {
		return nil
	}

	data, readErr := os.ReadFile(tmpPath)
	if readErr != nil {
		return document.IOErrorf(readErr, "failed to read %s", tmpPath)
	}

	ctx, parseErr := api.ReadContext(bytes.NewReader(data), document.NewConfiguration())
	if parseErr != nil {
		return fmt.Errorf("failed to read merged document: %w", parseErr)
	}

	prev, prevErr := pdfwrite.LastXRefOffset(data)
	if prevErr != nil {
		return fmt.Errorf("failed to locate merged cross-reference table: %w", prevErr)
	}

	root := ctx.XRefTable.Root
	if root == nil {
		return errNoCatalog
	}

	size := len(ctx.XRefTable.Table)
	if ctx.XRefTable.Size != nil && *ctx.XRefTable.Size > size {
		size = *ctx.XRefTable.Size
	}

	update := pdfwrite.InfoUpdate{
		Root: fmt.Sprintf("%d %d R", root.ObjectNumber.Value(), root.GenerationNumber.Value()),
		Size: size,
		Prev: prev,
	}

	for _, field := range fields {
		update.Fields = append(update.Fields, pdfwrite.InfoField{Key: field.Key, Value: field.Value})
	}

	file, openErr := os.OpenFile(tmpPath, os.O_WRONLY|os.O_APPEND, 0)
	if openErr != nil {
		return document.IOErrorf(openErr, "failed to open %s", tmpPath)
	}

	_, writeErr := update.WriteTo(file, int64(len(data)))
	closeErr := file.Close()

	if writeErr != nil {
		return document.IOErrorf(writeErr, "failed to write metadata to %s", tmpPath)
	}

	if closeErr != nil {
		return document.IOErrorf(closeErr, "failed to close %s", tmpPath)
	}

	engine.log.Info("Restored %d metadata fields from the first input", len(fields))

	return nil
}

func nonBlank(paths []string) []string {
	kept := make([]string, 0, len(paths))

	for _, path := range paths {
		if strings.TrimSpace(path) != "" {
			kept = append(kept, path)
		}
	}

	return kept
}
