package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/metrics"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/storage"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// MeetingStore is the read and delete side of the meeting database
type MeetingStore interface {
	List(ctx context.Context, limit int) ([]types.MeetingPreview, error)
	Get(ctx context.Context, id int64) (*types.Meeting, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// MeetingsHandler serves stored meetings
type MeetingsHandler struct {
	store   MeetingStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMeetingsHandler creates a new meetings handler
func NewMeetingsHandler(store MeetingStore, m *metrics.Metrics, logger *zap.Logger) *MeetingsHandler {
	return &MeetingsHandler{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// List returns meeting previews, newest first
func (h *MeetingsHandler) List(c *fiber.Ctx) error {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = min(n, maxListLimit)
	}

	meetings, err := h.store.List(c.UserContext(), limit)
	if err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(fiber.Map{
		"count":    len(meetings),
		"meetings": meetings,
	})
}

// Get returns one full meeting
func (h *MeetingsHandler) Get(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return err
	}

	meeting, err := h.store.Get(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Meeting not found",
		})
	}
	if err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(meeting)
}

// Delete removes one meeting. Deleting an unknown id reports deleted=false.
func (h *MeetingsHandler) Delete(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return err
	}

	deleted, err := h.store.Delete(c.UserContext(), id)
	if err != nil {
		return h.storeError(c, err)
	}
	if deleted {
		h.metrics.MeetingsDeleted.Inc()
		h.logger.Info("Meeting deleted", zap.Int64("id", id))
	}

	return c.JSON(fiber.Map{
		"deleted": deleted,
		"id":      id,
	})
}

func (h *MeetingsHandler) storeError(c *fiber.Ctx, err error) error {
	h.logger.Error("Meeting store failure", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Database error",
		"details": err.Error(),
	})
}

func meetingID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Meeting id must be a positive integer")
	}
	return id, nil
}
