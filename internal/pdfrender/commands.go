package pdfrender

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandExecutor defines an interface for running external commands.
type CommandExecutor interface {
	// RunCombined executes a command and returns its combined standard output and
	// standard error.
	RunCombined(ctx context.Context, name string, args ...string) ([]byte, error)
}

// defaultExecutor implements the CommandExecutor interface using the standard os/exec
// package.
type defaultExecutor struct{}

// RunCombined is the production implementation for executing a command and capturing all
// output.
func (executor *defaultExecutor) RunCombined(
	ctx context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// buildGhostscriptArgs constructs the list of command-line arguments for the Ghostscript
// process. The page is rendered at its own size, so the bitmap is
// width*dpi/72 by height*dpi/72 pixels.
func buildGhostscriptArgs(dpi, page int, outPath, pdfPath string) []string {
	return []string{
		"-q", "-dNOPAUSE", "-dBATCH", "-dSAFER", // Quiet, non-interactive, sandboxed.
		"-sDEVICE=png16m",                   // 24-bit color PNG.
		fmt.Sprintf("-r%d", dpi),            // Resolution in DPI.
		fmt.Sprintf("-dFirstPage=%d", page), // Page number to render.
		fmt.Sprintf("-dLastPage=%d", page),  // Only that page.
		"-o", outPath,
		"-dTextAlphaBits=4",
		"-dGraphicsAlphaBits=4",
		pdfPath,
	}
}
