package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/metrics"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

// UploadField is the multipart field carrying the recording
const UploadField = "audio"

// Processor runs one upload through the pipeline
type Processor interface {
	Process(ctx context.Context, up pipeline.Upload) (*types.Result, error)
}

// TranscribeHandler handles recording uploads
type TranscribeHandler struct {
	processor Processor
	tempDir   string
	maxSize   int64
	logger    *zap.Logger
}

// NewTranscribeHandler creates a new transcribe handler
func NewTranscribeHandler(processor Processor, tempDir string, maxSize int64, logger *zap.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		processor: processor,
		tempDir:   tempDir,
		maxSize:   maxSize,
		logger:    logger,
	}
}

// Handle validates the upload, saves it to the temp dir and runs the pipeline
func (h *TranscribeHandler) Handle(c *fiber.Ctx) error {
	startedAt := time.Now()

	form, err := c.MultipartForm()
	if err != nil {
		return clientError(c, fiber.StatusBadRequest, pipeline.ErrNoUpload, "ERR_NO_FILE")
	}

	files := form.File[UploadField]
	switch {
	case len(files) == 0:
		return clientError(c, fiber.StatusBadRequest, pipeline.ErrNoUpload, "ERR_NO_FILE")
	case len(files) > 1:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Exactly one file must be uploaded in the %q field", UploadField),
			"code":  "ERR_TOO_MANY_FILES",
		})
	}
	file := files[0]

	if file.Size > h.maxSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("%s (max %dMB)", pipeline.ErrFileTooLarge, h.maxSize/(1024*1024)),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	if !audio.ValidateAudioFormat(file.Filename) {
		return clientError(c, fiber.StatusBadRequest, pipeline.ErrUnsupportedFormat, "ERR_INVALID_FORMAT")
	}

	requestID := uuid.New().String()
	tempPath := filepath.Join(h.tempDir, requestID+strings.ToLower(filepath.Ext(file.Filename)))

	if err := c.SaveFile(file, tempPath); err != nil {
		os.Remove(tempPath)
		h.logger.Error("Failed to save uploaded file", zap.String("request_id", requestID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to save file",
			"details": err.Error(),
			"code":    "ERR_SAVE_FAILED",
		})
	}

	// the pipeline runs to completion even if the client goes away
	result, err := h.processor.Process(context.Background(), pipeline.Upload{
		Path:      tempPath,
		Filename:  filepath.Base(file.Filename),
		Size:      file.Size,
		StartedAt: startedAt,
		RequestID: requestID,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrNoUpload) {
			return clientError(c, fiber.StatusBadRequest, err, "ERR_NO_FILE")
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   failureMessage(err),
			"details": err.Error(),
		})
	}

	return c.JSON(result)
}

func clientError(c *fiber.Ctx, status int, err error, code string) error {
	msg := err.Error()
	return c.Status(status).JSON(fiber.Map{
		"error": strings.ToUpper(msg[:1]) + msg[1:],
		"code":  code,
	})
}

func failureMessage(err error) string {
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		return "Processing failed"
	}
	switch se.Stage {
	case metrics.StageNormalize:
		return "Audio processing failed"
	case metrics.StageTranscribe:
		return "Transcription failed"
	default:
		return "Processing failed"
	}
}
