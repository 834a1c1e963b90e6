package pdfrender_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/pdf-tools/internal/pdfrender"
)

type fakeExec struct {
	err           error
	combinedOut   []byte
	onRunCombined func(name string, args []string) error
	calls         [][]string
}

func (f *fakeExec) RunCombined(
	_ context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))

	if f.onRunCombined != nil {
		hookErr := f.onRunCombined(name, args)
		if hookErr != nil {
			return f.combinedOut, hookErr
		}
	}

	return f.combinedOut, f.err
}

// findOutputPath finds the output path from ghostscript arguments.
func findOutputPath(args []string) string {
	for i := range len(args) - 1 {
		if args[i] == "-o" {
			return args[i+1]
		}
	}

	return ""
}

// writePNG simulates ghostscript writing a width x height PNG to the output path.
func writePNG(width, height int) func(string, []string) error {
	return func(_ string, args []string) error {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		img.Set(0, 0, color.RGBA{R: 255, A: 255})

		file, createErr := os.Create(findOutputPath(args))
		if createErr != nil {
			return createErr
		}
		defer file.Close()

		return png.Encode(file, img)
	}
}

func TestNewGhostscript_Defaults(t *testing.T) {
	t.Parallel()

	t.Run("Zero values should default correctly", func(t *testing.T) {
		t.Parallel()

		cfg := pdfrender.NewGhostscript(pdfrender.Options{}).ConfigForTest()
		assert.Equal(t, "gs", cfg.GhostscriptPath)
		assert.Equal(t, os.TempDir(), cfg.TempDir)
	})

	t.Run("Custom values should be preserved", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := pdfrender.NewGhostscript(pdfrender.Options{
			GhostscriptPath: "/opt/gs/bin/gswin",
			TempDir:         dir,
		}).ConfigForTest()
		assert.Equal(t, "/opt/gs/bin/gswin", cfg.GhostscriptPath)
		assert.Equal(t, dir, cfg.TempDir)
	})
}

func TestBuildGhostscriptArgs(t *testing.T) {
	t.Parallel()

	args := pdfrender.BuildGhostscriptArgsForTest(150, 3, "/tmp/out.png", "/in/doc.pdf")

	assert.Contains(t, args, "-sDEVICE=png16m")
	assert.Contains(t, args, "-r150")
	assert.Contains(t, args, "-dFirstPage=3")
	assert.Contains(t, args, "-dLastPage=3")
	assert.Equal(t, "/tmp/out.png", findOutputPath(args))
	assert.Equal(t, "/in/doc.pdf", args[len(args)-1])
}

func TestRenderPage_DecodesGhostscriptOutput(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	renderer := pdfrender.NewGhostscript(pdfrender.Options{
		GhostscriptPath: "gs-test",
		TempDir:         tempDir,
	})
	fake := &fakeExec{onRunCombined: writePNG(12, 7)}
	renderer.SetExecutorForTest(fake)

	img, err := renderer.RenderPage(context.Background(), "/in/doc.pdf", 2, 96)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 7, img.Bounds().Dy())

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "gs-test", fake.calls[0][0])
	assert.Contains(t, fake.calls[0], "-r96")
	assert.Contains(t, fake.calls[0], "-dFirstPage=2")

	// The intermediate PNG and its directory are removed.
	entries, readErr := os.ReadDir(tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRenderPage_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("Invalid arguments", func(t *testing.T) {
		t.Parallel()

		renderer := pdfrender.NewGhostscript(pdfrender.Options{TempDir: t.TempDir()})
		renderer.SetExecutorForTest(&fakeExec{})

		_, err := renderer.RenderPage(ctx, "", 1, 72)
		require.ErrorIs(t, err, pdfrender.ErrPDFPathRequired)

		_, err = renderer.RenderPage(ctx, "doc.pdf", 0, 72)
		require.ErrorIs(t, err, pdfrender.ErrInvalidPage)

		_, err = renderer.RenderPage(ctx, "doc.pdf", 1, 0)
		require.ErrorIs(t, err, pdfrender.ErrInvalidDPI)
	})

	t.Run("Ghostscript failure", func(t *testing.T) {
		t.Parallel()

		renderer := pdfrender.NewGhostscript(pdfrender.Options{TempDir: t.TempDir()})
		renderer.SetExecutorForTest(&fakeExec{
			err:         errors.New("exit status 1"),
			combinedOut: []byte("Error: /undefined in --file--"),
		})

		_, err := renderer.RenderPage(ctx, "doc.pdf", 1, 72)
		require.ErrorIs(t, err, pdfrender.ErrRenderFailed)
		assert.Contains(t, err.Error(), "/undefined")
	})

	t.Run("No output file", func(t *testing.T) {
		t.Parallel()

		renderer := pdfrender.NewGhostscript(pdfrender.Options{TempDir: t.TempDir()})
		renderer.SetExecutorForTest(&fakeExec{})

		_, err := renderer.RenderPage(ctx, "doc.pdf", 1, 72)
		require.ErrorIs(t, err, pdfrender.ErrRenderFailed)
	})

	t.Run("Output is not a PNG", func(t *testing.T) {
		t.Parallel()

		renderer := pdfrender.NewGhostscript(pdfrender.Options{TempDir: t.TempDir()})
		renderer.SetExecutorForTest(&fakeExec{
			onRunCombined: func(_ string, args []string) error {
				return os.WriteFile(findOutputPath(args), []byte("png"), 0o600)
			},
		})

		_, err := renderer.RenderPage(ctx, filepath.Join("in", "doc.pdf"), 1, 72)
		require.ErrorIs(t, err, pdfrender.ErrRenderFailed)
	})
}
