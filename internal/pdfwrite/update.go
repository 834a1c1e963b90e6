package pdfwrite

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	// ErrNoStartXRef is returned by LastXRefOffset for data without a startxref
	// pointer.
	ErrNoStartXRef = errors.New("startxref not found")
	// ErrInvalidUpdate is returned for an InfoUpdate without a root or size.
	ErrInvalidUpdate = errors.New("invalid incremental update")
)

// InfoField is one information dictionary entry of an InfoUpdate.
type InfoField struct {
	Key   string
	Value string
}

// InfoUpdate is an incremental update that gives an existing document a new
// information dictionary. It is appended verbatim to the end of the file.
type InfoUpdate struct {
	// Root is the catalog reference of the existing document, e.g. "1 0 R".
	Root string
	// Size is the existing trailer /Size; the new dictionary takes that object number.
	Size int
	// Prev is the byte offset of the existing last cross-reference section.
	Prev   int64
	Fields []InfoField
}

// WriteTo writes the update to out. base is the length of the existing file,
// i.e. the offset at which out starts.
func (u InfoUpdate) WriteTo(out io.Writer, base int64) (int64, error) {
	if u.Root == "" || u.Size < 1 {
		return 0, fmt.Errorf("%w: root %q, size %d", ErrInvalidUpdate, u.Root, u.Size)
	}

	for _, field := range u.Fields {
		if !isName(field.Key) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidInfoKey, field.Key)
		}
	}

	buffered := bufio.NewWriter(out)
	pw := &pdfWriter{w: buffered, n: base}
	infoNum := u.Size

	// The previous section may not end with a line break.
	pw.printf("\n")

	objectOffset := pw.n

	pw.printf("%d 0 obj\n<<", infoNum)

	for _, field := range u.Fields {
		pw.printf(" /%s %s", field.Key, encodeTextString(field.Value))
	}

	pw.printf(" >>\nendobj\n")

	xrefOffset := pw.n

	pw.printf("xref\n%d 1\n%010d 00000 n \n", infoNum, objectOffset)
	pw.printf(
		"trailer\n<< /Size %d /Root %s /Info %d 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n",
		infoNum+1,
		u.Root,
		infoNum,
		u.Prev,
		xrefOffset,
	)

	if pw.err != nil {
		return pw.n - base, pw.err
	}

	if flushErr := buffered.Flush(); flushErr != nil {
		return pw.n - base, fmt.Errorf("failed to flush PDF update: %w", flushErr)
	}

	return pw.n - base, nil
}

// LastXRefOffset returns the offset named by the last startxref keyword in data.
func LastXRefOffset(data []byte) (int64, error) {
	const keyword = "startxref"

	at := bytes.LastIndex(data, []byte(keyword))
	if at < 0 {
		return 0, ErrNoStartXRef
	}

	rest := bytes.TrimLeft(data[at+len(keyword):], " \t\r\n")

	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}

	offset, parseErr := strconv.ParseInt(string(rest[:end]), 10, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoStartXRef, parseErr)
	}

	return offset, nil
}
