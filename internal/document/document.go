// Package document models PDF documents as ordered pages plus descriptive
// metadata, and holds the error kinds and file helpers shared by the engines.
package document

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Page is one sheet of a Document. Number is 1-based; Width and Height are in
// points (1/72 inch).
type Page struct {
	Number int
	Width  float64
	Height float64
}

// Metadata holds the document information dictionary fields.
type Metadata struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate string
	ModDate      string
}

// Field is a single information dictionary entry keyed by its PDF name.
type Field struct {
	Key   string
	Value string
}

// Fields returns the non-empty entries in a stable order.
func (m Metadata) Fields() []Field {
	all := []Field{
		{Key: "Title", Value: m.Title},
		{Key: "Author", Value: m.Author},
		{Key: "Subject", Value: m.Subject},
		{Key: "Keywords", Value: m.Keywords},
		{Key: "Creator", Value: m.Creator},
		{Key: "Producer", Value: m.Producer},
		{Key: "CreationDate", Value: m.CreationDate},
		{Key: "ModDate", Value: m.ModDate},
	}

	fields := make([]Field, 0, len(all))
	for _, field := range all {
		if field.Value != "" {
			fields = append(fields, field)
		}
	}

	return fields
}

// Document is an opened PDF: its source path, pages in order and metadata.
type Document struct {
	Path     string
	Pages    []Page
	Metadata Metadata
}

// PageCount returns the number of pages.
func (doc *Document) PageCount() int { return len(doc.Pages) }

// NewConfiguration returns the pdfcpu configuration used for every read and
// write in this module.
func NewConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return conf
}

// Open reads and validates the PDF at path. Any failure to read or parse the
// file, and a document without pages, is reported as ErrInvalidInput.
func Open(path string) (*Document, error) {
	doc, _, loadErr := Load(path)

	return doc, loadErr
}

// Load is Open that also returns the parsed pdfcpu context, so callers that go
// on to copy pages do not parse the file again.
func Load(path string) (*Document, *model.Context, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, nil, fmt.Errorf("%w: cannot read %s: %w", ErrInvalidInput, path, readErr)
	}

	if len(data) == 0 {
		return nil, nil, InvalidInputf("%s is empty", path)
	}

	ctx, parseErr := api.ReadValidateAndOptimize(bytes.NewReader(data), NewConfiguration())
	if parseErr != nil {
		return nil, nil, fmt.Errorf("%w: %s is not a valid PDF: %w", ErrInvalidInput, path, parseErr)
	}

	if ctx.PageCount == 0 {
		return nil, nil, InvalidInputf("%s has no pages", path)
	}

	dims, dimsErr := ctx.PageDims()
	if dimsErr != nil {
		return nil, nil, fmt.Errorf(
			"%w: cannot read page sizes of %s: %w",
			ErrInvalidInput,
			path,
			dimsErr,
		)
	}

	if len(dims) != ctx.PageCount {
		return nil, nil, InvalidInputf(
			"%s reports %d pages but %d page sizes",
			path,
			ctx.PageCount,
			len(dims),
		)
	}

	pages := make([]Page, len(dims))
	for index, dim := range dims {
		pages[index] = Page{Number: index + 1, Width: dim.Width, Height: dim.Height}
	}

	// Context embeds both Configuration and XRefTable; the info fields live on
	// the latter.
	xref := ctx.XRefTable

	return &Document{
		Path:  path,
		Pages: pages,
		Metadata: Metadata{
			Title:        xref.Title,
			Author:       xref.Author,
			Subject:      xref.Subject,
			Keywords:     xref.Keywords,
			Creator:      xref.Creator,
			Producer:     xref.Producer,
			CreationDate: xref.CreationDate,
			ModDate:      xref.ModDate,
		},
	}, ctx, nil
}
