// Command pdftools-server serves the shrink, split and merge operations over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/pdf-tools/internal/httpapi"
	"github.com/book-expert/pdf-tools/internal/merge"
	"github.com/book-expert/pdf-tools/internal/pdfrender"
	"github.com/book-expert/pdf-tools/internal/shrink"
	"github.com/book-expert/pdf-tools/internal/split"
)

const (
	// DefaultMaxFileSize is the default maximum upload size (50MB).
	DefaultMaxFileSize = 50 * 1024 * 1024

	// DefaultPort is the default server port.
	DefaultPort = "8080"

	// DefaultTempDir is the default directory for per-request work files.
	DefaultTempDir = "./temp"

	// DefaultLogDir is the default log directory.
	DefaultLogDir = "./logs/pdf_tools"

	// ServerReadTimeout is the HTTP server read timeout.
	ServerReadTimeout = 60 * time.Second

	// ServerWriteTimeout is the HTTP server write timeout.
	ServerWriteTimeout = 10 * time.Minute

	// ServerIdleTimeout is the HTTP server idle timeout.
	ServerIdleTimeout = 60 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful shutdown.
	GracefulShutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := run(ctx)
	if runErr != nil {
		log.Printf("Fatal server error: %v", runErr)
		stop()
		os.Exit(1)
	}

	log.Println("Server exited gracefully")
}

func run(ctx context.Context) error {
	config := &httpapi.Config{
		Port:        getEnv("PORT", DefaultPort),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", DefaultMaxFileSize),
		TempDir:     getEnv("TEMP_DIR", DefaultTempDir),
	}

	appLogger, loggerErr := logger.New(getEnv("LOG_DIR", DefaultLogDir), "pdftools-server.log")
	if loggerErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", loggerErr)
	}

	defer func() {
		if closeErr := appLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close app logger: %v", closeErr)
		}
	}()

	renderer := pdfrender.NewGhostscript(pdfrender.Options{
		GhostscriptPath: getEnv("GHOSTSCRIPT", ""),
		TempDir:         config.TempDir,
	})

	handler := httpapi.NewHandler(
		config,
		shrink.New(renderer, appLogger),
		split.New(appLogger),
		merge.New(appLogger),
		appLogger,
	)

	router := gin.Default()
	httpapi.SetupRoutes(router, handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  ServerReadTimeout,
		WriteTimeout: ServerWriteTimeout,
		IdleTimeout:  ServerIdleTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		appLogger.Info("Server starting on %s", srv.Addr)
		appLogger.Info("Max file size: %d bytes", config.MaxFileSize)
		appLogger.Info("Temp directory: %s", config.TempDir)

		serveErr := srv.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", serveErr)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
		defer cancel()

		shutdownErr := srv.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
		}

		return nil
	})

	return group.Wait()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil && intValue > 0 {
			return intValue
		}
	}

	return defaultValue
}
