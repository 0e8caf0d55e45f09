package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/cache"
	"github.com/caserag/ragengine/pkg/logger"
)

type CacheHandler struct {
	manager *cache.Manager
}

func NewCacheHandler(manager *cache.Manager) *CacheHandler {
	return &CacheHandler{manager: manager}
}

func (h *CacheHandler) GetStats(c *fiber.Ctx) error {
	return c.JSON(h.manager.Stats())
}

// Invalidate drops cache entries by document, case, explicit pattern, or
// everything, and reports how many entries were affected.
func (h *CacheHandler) Invalidate(c *fiber.Ctx) error {
	var req struct {
		DocumentID string `json:"document_id"`
		CaseID     string `json:"case_id"`
		Pattern    string `json:"pattern"`
		All        bool   `json:"all"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var affected int
	switch {
	case req.All:
		affected = h.manager.Clear(c.Context())
	case req.DocumentID != "":
		affected = h.manager.InvalidateDocument(c.Context(), req.DocumentID)
	case req.CaseID != "":
		affected = h.manager.InvalidateCase(c.Context(), req.CaseID)
	case req.Pattern != "":
		var err error
		affected, err = h.manager.InvalidatePattern(c.Context(), req.Pattern)
		if err != nil {
			logger.Error("Pattern invalidation failed", zap.String("pattern", req.Pattern), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Pattern invalidation failed",
			})
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "One of document_id, case_id, pattern, or all is required",
		})
	}

	return c.JSON(fiber.Map{
		"invalidated": affected,
	})
}
