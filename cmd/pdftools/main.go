// Command pdftools shrinks, splits and merges PDF files.
//
// Usage:
//
//	pdftools shrink [--preset p | --dpi N --quality Q] [--grayscale] <input> [output]
//	pdftools split (--every N | --split-at 5,10) [--outdir d] [--prefix p] <input>
//	pdftools merge <output> <input> <input>...
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"

	"github.com/book-expert/pdf-tools/internal/document"
)

// Exit codes.
const (
	exitOK               = 0
	exitFailure          = 1
	exitInvalidParameter = 2
	exitInvalidInput     = 3
	exitIO               = 4
)

var errUsage = errors.New("usage")

// Define named types for each section of the configuration.
type configLogs struct {
	Dir string `toml:"dir"`
}

type configShrink struct {
	Preset      string `toml:"preset"`
	Ghostscript string `toml:"ghostscript"`
	DPI         int    `toml:"dpi"`
	Quality     int    `toml:"quality"`
	Workers     int    `toml:"workers"`
	Grayscale   bool   `toml:"grayscale"`
}

type configSplit struct {
	OutDir string `toml:"outdir"`
}

// config represents the structure of the project.toml file.
type config struct {
	Logs   configLogs   `toml:"logs"`
	Shrink configShrink `toml:"shrink"`
	Split  configSplit  `toml:"split"`
}

// env carries what every subcommand needs.
type env struct {
	stdout      io.Writer
	stderr      io.Writer
	log         *logger.Logger
	cfg         config
	projectRoot string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

// run is the main logic function, separated from main to allow for easier testing and
// clean exit handling. It returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)

		return exitInvalidParameter
	}

	command, commandArgs := args[0], args[1:]

	var handler func(context.Context, *env, []string) error

	switch command {
	case "shrink":
		handler = runShrink
	case "split":
		handler = runSplit
	case "merge":
		handler = runMerge
	case "help", "-h", "--help":
		printUsage(stdout)

		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "Error: unknown command %q\n", command)
		printUsage(stderr)

		return exitInvalidParameter
	}

	environment, setupErr := setup(stdout, stderr)
	if setupErr != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", setupErr)

		return exitFailure
	}

	defer func() {
		cerr := environment.log.Close()
		if cerr != nil {
			_, _ = fmt.Fprintf(stderr, "failed to close logger: %v\n", cerr)
		}
	}()

	commandErr := handler(ctx, environment, commandArgs)
	if commandErr != nil {
		if !errors.Is(commandErr, errUsage) {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", commandErr)
			environment.log.Error("%s failed: %v", command, commandErr)
		}

		return exitCode(commandErr)
	}

	return exitOK
}

// exitCode maps an error kind to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, document.ErrInvalidParameter):
		return exitInvalidParameter
	case errors.Is(err, document.ErrInvalidInput):
		return exitInvalidInput
	case errors.Is(err, document.ErrIO):
		return exitIO
	default:
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `Usage:
  pdftools shrink [--preset light|medium|aggressive | --dpi N --quality Q] [--grayscale] <input> [output]
  pdftools split (--every N | --split-at 5,10) [--outdir dir] [--prefix name] <input>
  pdftools merge <output> <input> <input>...
`)
}

// setup locates the project configuration and opens the log file.
func setup(stdout, stderr io.Writer) (*env, error) {
	projectRoot, configPath, rootErr := configurator.FindProjectRoot(".")
	if rootErr != nil {
		// Without a project.toml the tool still runs on defaults.
		projectRoot, configPath = ".", ""
	}

	cfg, cfgErr := safeLoadConfig(configPath)
	if cfgErr != nil {
		return nil, cfgErr
	}

	log, logErr := setupLogger(projectRoot, cfg.Logs.Dir)
	if logErr != nil {
		return nil, fmt.Errorf("could not set up logger: %w", logErr)
	}

	return &env{
		stdout:      stdout,
		stderr:      stderr,
		log:         log,
		cfg:         cfg,
		projectRoot: projectRoot,
	}, nil
}

// safeLoadConfig loads the TOML config, allowing missing file without error.
func safeLoadConfig(path string) (config, error) {
	if path == "" {
		return config{}, nil
	}

	cfg, err := loadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			var emptyCfg config

			return emptyCfg, nil
		}

		return config{}, fmt.Errorf("error loading config file: %w", err)
	}

	return cfg, nil
}

// loadConfig reads and parses the project.toml file.
func loadConfig(path string) (config, error) {
	var cfg config

	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		var zero config

		return zero, fmt.Errorf("failed to decode config file: %w", err)
	}

	return cfg, nil
}

// setupLogger initializes the logger, creating the log directory if needed.
func setupLogger(projectRoot, logDirConfig string) (*logger.Logger, error) {
	logDir := logDirConfig
	if logDir == "" {
		logDir = filepath.Join(projectRoot, "logs", "pdf_tools")
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("20060102_150405"))

	log, err := logger.New(logDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}
