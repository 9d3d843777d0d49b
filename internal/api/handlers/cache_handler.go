package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/research-agent/backend/pkg/logger"
)

type EmbeddingInvalidator interface {
	InvalidateEmbeddings(ctx context.Context) (int, error)
}

type CacheHandler struct {
	cache EmbeddingInvalidator
}

func NewCacheHandler(cache EmbeddingInvalidator) *CacheHandler {
	return &CacheHandler{cache: cache}
}

func (h *CacheHandler) InvalidateEmbeddings(c *fiber.Ctx) error {
	deleted, err := h.cache.InvalidateEmbeddings(c.UserContext())
	if err != nil {
		logger.Error("Failed to invalidate embedding cache", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to invalidate embedding cache",
			"deleted": deleted,
		})
	}

	return c.JSON(fiber.Map{"deleted": deleted})
}
