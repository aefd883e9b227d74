package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/signkit/internal/usecase"
)

// MaxUploadSize caps a single uploaded image.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for boundaries and headers around the image.
const multipartOverhead = 64 << 10

// Recognizer is the subset of the recognition use case the handlers need.
type Recognizer interface {
	IdentifyImage(ctx context.Context, data []byte) (*usecase.Recognition, error)
}

// Options tunes route behaviour.
type Options struct {
	// Timeout bounds one recognition; zero disables it.
	Timeout time.Duration
	// StaticDir, when it holds an index.html, is served for unknown GET paths.
	StaticDir string
	Logger    *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc Recognizer, authMiddleware gin.HandlerFunc, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "API is running"})
	})

	router.POST("/api/recognize-sign", authMiddleware, func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

		file, err := c.FormFile("image")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds 10MB limit"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}
		if file.Size > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds 10MB limit"})
			return
		}
		if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Only image files are allowed!"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		ctx := c.Request.Context()
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		// Recognition failures answer 200 with an Unknown sign; the frontend
		// rejects any other status.
		result, err := uc.IdentifyImage(ctx, data)
		switch {
		case err == nil:
			logger.Info("identified sign", zap.String("request_id", result.RequestID), zap.String("sign", result.Label))
			c.JSON(http.StatusOK, gin.H{"sign": result.Label, "request_id": result.RequestID})
		case errors.Is(err, usecase.ErrEmptyImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		case errors.Is(err, context.DeadlineExceeded):
			logger.Warn("recognition timed out", zap.Duration("timeout", opts.Timeout))
			c.JSON(http.StatusOK, gin.H{"sign": "Unknown (timeout)", "error": "Processing timed out"})
		default:
			logger.Error("recognition failed", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"sign": "Unknown", "error": err.Error()})
		}
	})

	router.NoRoute(spaFallback(opts.StaticDir))
}

// spaFallback serves files from dir and index.html for any other GET path.
func spaFallback(dir string) gin.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	return func(c *gin.Context) {
		if dir == "" || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if _, err := os.Stat(index); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		candidate := filepath.Join(dir, filepath.Clean("/"+c.Request.URL.Path))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			c.File(candidate)
			return
		}
		c.File(index)
	}
}
