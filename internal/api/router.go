// router.go - Route and middleware setup

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Service identity reported by /health
const (
	ServiceName    = "ocr-text-extractor"
	ServiceVersion = "1.0.0"
)

// RouterConfig holds the HTTP-level settings
type RouterConfig struct {
	AllowedOrigins string
	MaxUploadMB    int
	RequestTimeout time.Duration // 0 = bounded only by the client connection
}

// NewRouter builds the gin engine with CORS, upload limits and all routes
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	maxBytes := int64(cfg.MaxUploadMB) << 20
	if maxBytes > 0 {
		router.MaxMultipartMemory = maxBytes
	}

	router.Use(corsMiddleware(cfg.AllowedOrigins))

	// Root endpoint for SSL verification
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": ServiceName,
			"version": ServiceVersion,
		})
	})

	upload := router.Group("/", bodyLimit(maxBytes), requestDeadline(cfg.RequestTimeout))
	upload.POST("/extract-images", h.ExtractImagesHandler)
	upload.POST("/extract-pdf", h.ExtractPDFHandler)

	return router
}

func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// bodyLimit caps the request body; oversize uploads fail multipart parsing
func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// requestDeadline bounds the whole extraction; units still running at the deadline fail
func requestDeadline(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
