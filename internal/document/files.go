package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// defaultDirMode is the default permissions for created directories.
	defaultDirMode = 0o750

	// outputFileMode is the permissions of committed output files.
	outputFileMode = 0o644
)

// DiscoverPDFs finds all PDF files in a given directory.
// It performs a case-insensitive search and does not recurse into subdirectories.
func DiscoverPDFs(dirPath string) ([]string, error) {
	dirEntries, readErr := os.ReadDir(dirPath)
	if readErr != nil {
		return nil, fmt.Errorf(
			"%w: could not read directory %s: %w",
			ErrInvalidInput,
			dirPath,
			readErr,
		)
	}

	var pdfPaths []string

	for _, entry := range dirEntries {
		if !entry.IsDir() &&
			strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {

			pdfPaths = append(pdfPaths, filepath.Join(dirPath, entry.Name()))
		}
	}

	return pdfPaths, nil
}

// BaseName returns the file name of path without directory and extension.
// For '/in/mydoc.pdf' it returns 'mydoc'.
func BaseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// EnsureDir creates dirPath and any missing parents.
func EnsureDir(dirPath string) error {
	mkdirErr := os.MkdirAll(dirPath, defaultDirMode)
	if mkdirErr != nil {
		return IOErrorf(mkdirErr, "failed to create directory %s", dirPath)
	}

	return nil
}

// FileSize returns the on-disk size of path in bytes.
func FileSize(path string) (int64, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return 0, IOErrorf(statErr, "failed to stat %s", path)
	}

	return info.Size(), nil
}

// WriteAtomic creates the parent directory of path, streams content into a
// temporary file beside it and renames the temporary file onto path once write
// succeeds. On failure no file is left at path.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	tmpPath, createErr := CreateTemp(path)
	if createErr != nil {
		return createErr
	}

	file, openErr := os.OpenFile(tmpPath, os.O_WRONLY|os.O_TRUNC, 0o600)
	if openErr != nil {
		removeQuietly(tmpPath)

		return IOErrorf(openErr, "failed to open %s", tmpPath)
	}

	writeErr := write(file)
	closeErr := file.Close()

	if writeErr != nil {
		removeQuietly(tmpPath)

		return IOErrorf(writeErr, "failed to write %s", path)
	}

	if closeErr != nil {
		removeQuietly(tmpPath)

		return IOErrorf(closeErr, "failed to close %s", tmpPath)
	}

	return Commit(tmpPath, path)
}

// CreateTemp creates the parent directory of path and an empty temporary file in
// it, returning the temporary file's path. Pair with Commit or Discard.
func CreateTemp(path string) (string, error) {
	dir := filepath.Dir(path)
	if dirErr := EnsureDir(dir); dirErr != nil {
		return "", dirErr
	}

	file, createErr := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if createErr != nil {
		return "", IOErrorf(createErr, "failed to create temporary file in %s", dir)
	}

	tmpPath := file.Name()
	if closeErr := file.Close(); closeErr != nil {
		removeQuietly(tmpPath)

		return "", IOErrorf(closeErr, "failed to close %s", tmpPath)
	}

	return tmpPath, nil
}

// Commit renames a temporary file produced by CreateTemp onto path. The
// committed file is readable by everyone, like one created with os.Create.
func Commit(tmpPath, path string) error {
	if chmodErr := os.Chmod(tmpPath, outputFileMode); chmodErr != nil {
		removeQuietly(tmpPath)

		return IOErrorf(chmodErr, "failed to set permissions on %s", tmpPath)
	}

	renameErr := os.Rename(tmpPath, path)
	if renameErr != nil {
		removeQuietly(tmpPath)

		return IOErrorf(renameErr, "failed to move output into place at %s", path)
	}

	return nil
}

// Discard removes a temporary file produced by CreateTemp.
func Discard(tmpPath string) { removeQuietly(tmpPath) }

func removeQuietly(path string) {
	_ = os.Remove(path)
}
