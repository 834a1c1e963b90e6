// Package httpapi exposes the shrink, split and merge operations over HTTP.
package httpapi

import (
	"net/http"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"

	"github.com/book-expert/pdf-tools/internal/merge"
	"github.com/book-expert/pdf-tools/internal/shrink"
	"github.com/book-expert/pdf-tools/internal/split"
)

// Config holds application configuration.
type Config struct {
	Port        string
	TempDir     string
	MaxFileSize int64
}

// Handler serves the PDF endpoints.
type Handler struct {
	config   *Config
	shrinker *shrink.Engine
	splitter *split.Engine
	merger   *merge.Engine
	log      *logger.Logger
}

// NewHandler creates a Handler backed by the given engines.
func NewHandler(
	config *Config,
	shrinker *shrink.Engine,
	splitter *split.Engine,
	merger *merge.Engine,
	log *logger.Logger,
) *Handler {
	return &Handler{
		config:   config,
		shrinker: shrinker,
		splitter: splitter,
		merger:   merger,
		log:      log,
	}
}

// SetupRoutes registers the API and health routes on r.
func SetupRoutes(r *gin.Engine, handler *Handler) {
	apiGroup := r.Group("/api/pdf")
	{
		apiGroup.POST("/shrink", handler.HandleShrink)
		apiGroup.POST("/split", handler.HandleSplit)
		apiGroup.POST("/merge", handler.HandleMerge)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "pdf-tools",
		})
	})
}
