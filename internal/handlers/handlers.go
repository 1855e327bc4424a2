package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/foodscan/internal/domain"
	"github.com/example/foodscan/internal/logging"
	"github.com/example/foodscan/internal/upload"
	"github.com/example/foodscan/internal/usecase"
)

const (
	// MaxUploadSize is the default limit for a single image.
	MaxUploadSize = 10 << 20

	multipartOverhead   = 1 << 20
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Options tunes the HTTP surface.
type Options struct {
	MaxUploadBytes int64
}

type selectionRequest struct {
	Label string `json:"label" binding:"required"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router. hub may be nil.
func RegisterRoutes(router *gin.Engine, uc *usecase.SessionUseCase, hub *EventHub, opts Options) {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = MaxUploadSize
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, uc.View())
	})

	router.POST("/upload", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload+multipartOverhead)

		file, err := c.FormFile("file")
		if err != nil {
			switch {
			case isTooLarge(err):
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			case errors.Is(err, http.ErrMissingFile):
				c.Status(http.StatusNoContent)
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
			}
			return
		}
		if file.Size == 0 {
			c.Status(http.StatusNoContent)
			return
		}
		if file.Size > maxUpload {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
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

		declared := file.Header.Get("Content-Type")
		if !isImage(declared) && !isImage(http.DetectContentType(data)) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "file is not an image"})
			return
		}

		result, err := uc.Upload(c.Request.Context(), &upload.File{Name: file.Filename, ContentType: declared, Data: data})
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				c.Status(http.StatusNoContent)
				return
			}
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"image_id": result.ImageID,
			"items":    len(result.Items),
			"session":  uc.View(),
		})
	})

	router.GET("/preview", func(c *gin.Context) {
		preview, ok := uc.Preview()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no preview"})
			return
		}
		c.Header("X-Image-Id", preview.FileName)
		c.Data(http.StatusOK, preview.ContentType, preview.Data)
	})

	router.GET("/labels", func(c *gin.Context) {
		labels, ok := uc.Labels()
		c.JSON(http.StatusOK, gin.H{"loaded": ok, "labels": labels})
	})

	router.GET("/model", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"model": uc.Model()})
	})

	feedback := router.Group("/feedback")

	feedback.POST("/like", func(c *gin.Context) {
		view, err := uc.Like(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	})

	feedback.POST("/dislike", func(c *gin.Context) {
		view, err := uc.Dislike()
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	})

	feedback.PUT("/selection", func(c *gin.Context) {
		var req selectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
			return
		}
		view, err := uc.Select(req.Label)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	})

	feedback.POST("/submit", func(c *gin.Context) {
		view, err := uc.Submit(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	})

	feedback.GET("/history", func(c *gin.Context) {
		limit := defaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		logs, err := uc.History(c.Request.Context(), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": logs})
	})

	feedback.GET("/summary", func(c *gin.Context) {
		summary, err := uc.Summary(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	if hub != nil {
		router.GET("/events", hub.Serve)
	}
}

func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if requestID := logging.RequestIDOf(err); requestID != "" {
		body["request_id"] = requestID
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, domain.ErrSuperseded):
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrService):
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, usecase.ErrJournalDisabled):
		c.JSON(http.StatusServiceUnavailable, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
