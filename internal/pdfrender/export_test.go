package pdfrender

// Exported test-only accessors for unexported functions and fields.
// This file is compiled only during tests and does not affect the public API.

// BuildGhostscriptArgsForTest exposes buildGhostscriptArgs.
func BuildGhostscriptArgsForTest(dpi, page int, outPath, pdfPath string) []string {
	return buildGhostscriptArgs(dpi, page, outPath, pdfPath)
}

// ConfigForTest returns a copy of the renderer configuration for assertions in tests.
func (renderer *Ghostscript) ConfigForTest() Options { return renderer.config }

// SetExecutorForTest allows tests to inject a fake executor.
func (renderer *Ghostscript) SetExecutorForTest(exec CommandExecutor) {
	renderer.executor = exec
}
