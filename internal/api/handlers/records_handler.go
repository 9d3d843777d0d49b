package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/storage/models"
	"github.com/research-agent/backend/internal/storage/sqlite"
	"github.com/research-agent/backend/pkg/logger"
)

type RecordReader interface {
	FindRecord(ctx context.Context, id string) (*models.EvaluationRecord, error)
	ListRecords(ctx context.Context, filter models.RecordFilter, page, limit int) (*models.RecordPage, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

type RecordsHandler struct {
	records RecordReader
}

func NewRecordsHandler(records RecordReader) *RecordsHandler {
	return &RecordsHandler{records: records}
}

// ListRecords serves GET /evaluations?page=&limit=&passed=&q=.
func (h *RecordsHandler) ListRecords(c *fiber.Ctx) error {
	var filter models.RecordFilter
	if raw := c.Query("passed"); raw != "" {
		passed, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "passed must be true or false",
			})
		}
		filter.Passed = &passed
	}
	filter.Query = c.Query("q")

	page, err := h.records.ListRecords(c.UserContext(), filter, c.QueryInt("page", 1), c.QueryInt("limit", 20))
	if err != nil {
		logger.Error("Failed to list evaluation records", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list evaluation records",
		})
	}

	return c.JSON(page)
}

func (h *RecordsHandler) GetRecord(c *fiber.Ctx) error {
	record, err := h.records.FindRecord(c.UserContext(), c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Evaluation record not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get evaluation record", zap.String("record_id", c.Params("id")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get evaluation record",
		})
	}

	return c.JSON(record)
}

func (h *RecordsHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.records.Stats(c.UserContext())
	if err != nil {
		logger.Error("Failed to compute evaluation stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute evaluation stats",
		})
	}

	return c.JSON(stats)
}
