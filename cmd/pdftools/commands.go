package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/pdf-tools/internal/document"
	"github.com/book-expert/pdf-tools/internal/merge"
	"github.com/book-expert/pdf-tools/internal/pdfrender"
	"github.com/book-expert/pdf-tools/internal/progress"
	"github.com/book-expert/pdf-tools/internal/shrink"
	"github.com/book-expert/pdf-tools/internal/split"
)

const shrinkSuffix = ".shrink.pdf"

// shrinkFlags represents the command-line arguments of the shrink command.
type shrinkFlags struct {
	set         map[string]bool
	preset      string
	ghostscript string
	dpi         int
	quality     int
	workers     int
	grayscale   bool
}

// shrinkOptions is the effective shrink configuration after flags and config
// file are combined.
type shrinkOptions struct {
	preset      string
	ghostscript string
	dpi         int
	quality     int
	workers     int
	grayscale   bool
}

// mergeConfigAndFlags combines settings from the config file and command-line flags.
// Flags take precedence over the config file settings. Choosing any of --preset,
// --dpi or --quality replaces all three config values, so a configured preset
// never collides with an explicit dpi.
func mergeConfigAndFlags(cfg configShrink, flgs shrinkFlags) shrinkOptions {
	opts := shrinkOptions{
		preset:      cfg.Preset,
		ghostscript: cfg.Ghostscript,
		dpi:         cfg.DPI,
		quality:     cfg.Quality,
		workers:     cfg.Workers,
		grayscale:   cfg.Grayscale,
	}

	if flgs.set["preset"] || flgs.set["dpi"] || flgs.set["quality"] {
		opts.preset = flgs.preset
		opts.dpi = flgs.dpi
		opts.quality = flgs.quality
	}

	if flgs.set["grayscale"] {
		opts.grayscale = flgs.grayscale
	}

	if flgs.ghostscript != "" {
		opts.ghostscript = flgs.ghostscript
	}

	if flgs.workers > 0 {
		opts.workers = flgs.workers
	}

	return opts
}

// settings resolves the options into validated shrink settings.
func (opts shrinkOptions) settings(flgs shrinkFlags) (shrink.Settings, error) {
	if flgs.set["dpi"] && flgs.dpi == 0 {
		return shrink.Settings{}, document.InvalidParameterf("dpi must be positive, got 0")
	}

	if flgs.set["quality"] && flgs.quality == 0 {
		return shrink.Settings{}, document.InvalidParameterf("quality must be between 1 and 100, got 0")
	}

	preset, presetErr := shrink.ParsePreset(opts.preset)
	if presetErr != nil {
		return shrink.Settings{}, presetErr
	}

	return shrink.ResolveSettings(preset, opts.dpi, opts.quality, opts.grayscale)
}

func parseShrinkFlags(environment *env, args []string) (shrinkFlags, []string, error) {
	flgs := shrinkFlags{set: map[string]bool{}}

	fs := flag.NewFlagSet("shrink", flag.ContinueOnError)
	fs.SetOutput(environment.stderr)
	fs.StringVar(&flgs.preset, "preset", "", "Preset: light (200 dpi, q75), medium (150, q60), aggressive (120, q50).")
	fs.IntVar(&flgs.dpi, "dpi", 0, "Render resolution in DPI (default 150).")
	fs.IntVar(&flgs.quality, "quality", 0, "JPEG quality 1-100 (default 60).")
	fs.BoolVar(&flgs.grayscale, "grayscale", false, "Convert pages to grayscale.")
	fs.StringVar(&flgs.ghostscript, "gs", "", "Ghostscript executable (default gs).")
	fs.IntVar(&flgs.workers, "workers", 0, "Concurrent files when shrinking a directory.")

	parseErr := fs.Parse(args)
	if parseErr != nil {
		return flgs, nil, fmt.Errorf("%w: %w", errUsage, parseErr)
	}

	fs.Visit(func(f *flag.Flag) { flgs.set[f.Name] = true })

	return flgs, fs.Args(), nil
}

// runShrink implements `pdftools shrink`.
func runShrink(ctx context.Context, environment *env, args []string) error {
	flgs, positional, flagsErr := parseShrinkFlags(environment, args)
	if flagsErr != nil {
		return flagsErr
	}

	if len(positional) < 1 || len(positional) > 2 {
		printUsage(environment.stderr)

		return errUsage
	}

	opts := mergeConfigAndFlags(environment.cfg.Shrink, flgs)

	settings, settingsErr := opts.settings(flgs)
	if settingsErr != nil {
		return settingsErr
	}

	renderer := pdfrender.NewGhostscript(pdfrender.Options{GhostscriptPath: opts.ghostscript})
	engine := shrink.New(renderer, environment.log)

	input := positional[0]
	output := ""

	if len(positional) == 2 {
		output = positional[1]
	}

	info, statErr := os.Stat(input)
	if statErr != nil {
		return fmt.Errorf("%w: '%s' not found: %w", document.ErrInvalidInput, input, statErr)
	}

	if info.IsDir() {
		return shrinkDirectory(ctx, environment, engine, settings, opts.workers, input, output)
	}

	if output == "" {
		output = defaultShrinkOutput(input)
	}

	bar := progress.NewBar(environment.stderr, "pages")
	defer bar.Finish()

	report, shrinkErr := engine.Shrink(ctx, input, output, settings, bar)
	if shrinkErr != nil {
		return shrinkErr
	}

	_, _ = fmt.Fprintf(environment.stdout, "\n%s\n", report)

	return nil
}

// defaultShrinkOutput returns '<input-without-ext>.shrink.pdf'.
func defaultShrinkOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + shrinkSuffix
}

// shrinkJobs pairs each PDF with its output path in outputDir. Two inputs
// whose outputs differ only in case, such as a.pdf and a.PDF, are rejected
// before any work starts.
func shrinkJobs(pdfPaths []string, outputDir string) ([]shrink.Job, error) {
	jobs := make([]shrink.Job, 0, len(pdfPaths))
	claimed := make(map[string]string, len(pdfPaths))

	for _, pdfPath := range pdfPaths {
		// Outputs of an earlier run are not inputs.
		if strings.HasSuffix(strings.ToLower(pdfPath), shrinkSuffix) {
			continue
		}

		outputPath := filepath.Join(outputDir, document.BaseName(pdfPath)+shrinkSuffix)

		key := strings.ToLower(outputPath)
		if other, taken := claimed[key]; taken {
			return nil, document.InvalidInputf(
				"%s and %s would both be written to %s",
				filepath.Base(other),
				filepath.Base(pdfPath),
				outputPath,
			)
		}

		claimed[key] = pdfPath

		jobs = append(jobs, shrink.Job{InputPath: pdfPath, OutputPath: outputPath})
	}

	return jobs, nil
}

// shrinkDirectory shrinks every PDF directly inside inputDir into outputDir.
func shrinkDirectory(
	ctx context.Context,
	environment *env,
	engine *shrink.Engine,
	settings shrink.Settings,
	workers int,
	inputDir, outputDir string,
) error {
	if outputDir == "" {
		outputDir = inputDir
	}

	pdfPaths, discoverErr := document.DiscoverPDFs(inputDir)
	if discoverErr != nil {
		return discoverErr
	}

	jobs, jobsErr := shrinkJobs(pdfPaths, outputDir)
	if jobsErr != nil {
		return jobsErr
	}

	if len(jobs) == 0 {
		return document.InvalidInputf("no PDF files found in %s", inputDir)
	}

	environment.log.Info("Found %d PDF(s) to process.", len(jobs))

	bar := progress.NewBar(environment.stderr, "files")
	results := engine.ShrinkAll(ctx, jobs, settings, workers, bar)
	bar.Finish()

	var failures []error

	for _, result := range results {
		if result.Err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", result.Job.InputPath, result.Err))

			continue
		}

		_, _ = fmt.Fprintf(environment.stdout, "\n%s\n", result.Report)
	}

	if len(failures) > 0 {
		return fmt.Errorf(
			"%d of %d files failed: %w",
			len(failures),
			len(jobs),
			errors.Join(failures...),
		)
	}

	return nil
}

// runSplit implements `pdftools split`.
func runSplit(_ context.Context, environment *env, args []string) error {
	var (
		every   int
		splitAt string
		outDir  string
		prefix  string
	)

	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	fs.SetOutput(environment.stderr)
	fs.IntVar(&every, "every", 0, "Split every N pages.")
	fs.StringVar(&splitAt, "split-at", "", "Comma-separated 1-based pages that start a new part, e.g. 5,10.")
	fs.StringVar(&outDir, "outdir", "", "Output directory (default: the input's directory).")
	fs.StringVar(&prefix, "prefix", "", "Output file prefix (default: the input's name).")

	parseErr := fs.Parse(args)
	if parseErr != nil {
		return fmt.Errorf("%w: %w", errUsage, parseErr)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if fs.NArg() != 1 {
		printUsage(environment.stderr)

		return errUsage
	}

	if set["every"] == set["split-at"] {
		return document.InvalidParameterf("use exactly one of --every or --split-at")
	}

	boundary := split.Every(every)

	if set["split-at"] {
		pages, pagesErr := split.ParsePageList(splitAt)
		if pagesErr != nil {
			return pagesErr
		}

		boundary = split.At(pages...)
	}

	if outDir == "" {
		outDir = environment.cfg.Split.OutDir
	}

	bar := progress.NewBar(environment.stderr, "parts")

	paths, splitErr := split.New(environment.log).Split(fs.Arg(0), outDir, boundary, prefix, bar)
	bar.Finish()

	for _, path := range paths {
		_, _ = fmt.Fprintf(environment.stdout, "Created: %s\n", path)
	}

	return splitErr
}

// runMerge implements `pdftools merge`.
func runMerge(_ context.Context, environment *env, args []string) error {
	if len(args) < 1 {
		printUsage(environment.stderr)

		return errUsage
	}

	output, inputs := args[0], args[1:]

	bar := progress.NewBar(environment.stderr, "inputs")
	defer bar.Finish()

	mergeErr := merge.New(environment.log).Merge(output, inputs, bar)
	if mergeErr != nil {
		return mergeErr
	}

	absolute, absErr := filepath.Abs(output)
	if absErr != nil {
		absolute = output
	}

	_, _ = fmt.Fprintf(environment.stdout, "Created: %s\n", absolute)

	return nil
}
