package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/generation"
	"github.com/caserag/ragengine/internal/retrieval"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/pkg/logger"
)

type SearchHandler struct {
	engine  *retrieval.Engine
	answers *generation.Service
}

func NewSearchHandler(engine *retrieval.Engine, answers *generation.Service) *SearchHandler {
	return &SearchHandler{
		engine:  engine,
		answers: answers,
	}
}

type searchRequest struct {
	Query        string             `json:"query"`
	CaseID       string             `json:"case_id"`
	DocumentIDs  []string           `json:"document_ids"`
	Limit        int                `json:"limit"`
	Threshold    float64            `json:"threshold"`
	Distribution map[string]float64 `json:"strategy_distribution"`
}

func (r searchRequest) toRetrieval() retrieval.Request {
	var distribution map[models.Strategy]float64
	if len(r.Distribution) > 0 {
		distribution = make(map[models.Strategy]float64, len(r.Distribution))
		for k, v := range r.Distribution {
			distribution[models.Strategy(k)] = v
		}
	}
	return retrieval.Request{
		Query:        r.Query,
		CaseID:       r.CaseID,
		DocumentIDs:  r.DocumentIDs,
		Limit:        r.Limit,
		Threshold:    r.Threshold,
		Distribution: distribution,
	}
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.engine.Search(c.Context(), req.toRetrieval())
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) || errors.Is(err, retrieval.ErrEmptyScope) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	return c.JSON(resp)
}

func (h *SearchHandler) HandleAnswer(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	answer, err := h.answers.Answer(c.Context(), req.toRetrieval())
	if err != nil {
		switch {
		case errors.Is(err, retrieval.ErrEmptyQuery), errors.Is(err, retrieval.ErrEmptyScope):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, generation.ErrNoContext):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Answer generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Answer generation failed",
		})
	}

	return c.JSON(answer)
}
