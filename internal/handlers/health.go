package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/logging"
)

// ModelStatus reports whether the speech model has been loaded
type ModelStatus interface {
	Loaded() bool
}

// MeetingCounter counts stored meetings
type MeetingCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler reports service status
type HealthHandler struct {
	model       ModelStatus
	llmEndpoint string
	counter     MeetingCounter
	logger      *zap.Logger
}

// NewHealthHandler creates a health handler. counter is nil when
// persistence is disabled.
func NewHealthHandler(model ModelStatus, llmEndpoint string, counter MeetingCounter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		model:       model,
		llmEndpoint: llmEndpoint,
		counter:     counter,
		logger:      logger,
	}
}

// Handle returns the health payload
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":      "healthy",
		"modelLoaded": h.model.Loaded(),
		"llmEndpoint": h.llmEndpoint,
		"persistence": h.counter != nil,
	}

	if h.counter != nil {
		n, err := h.counter.Count(c.UserContext())
		if err != nil {
			h.logger.Warn("Failed to count meetings", zap.Error(err))
		} else {
			body["meetingCount"] = n
		}
	}

	return c.JSON(body)
}

// LogsHandler serves recent log lines
type LogsHandler struct {
	buf *logging.Buffer
}

// NewLogsHandler creates a logs handler
func NewLogsHandler(buf *logging.Buffer) *LogsHandler {
	return &LogsHandler{buf: buf}
}

// Handle returns the buffered log lines, oldest first
func (h *LogsHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"logs": h.buf.Lines(),
	})
}
