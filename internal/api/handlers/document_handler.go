package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/classifier"
	"github.com/caserag/ragengine/internal/ingestion"
	"github.com/caserag/ragengine/internal/storage"
	"github.com/caserag/ragengine/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	docs      storage.DocumentStore
	chunks    storage.ChunkStore
}

func NewDocumentHandler(processor *ingestion.Processor, docs storage.DocumentStore, chunks storage.ChunkStore) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		docs:      docs,
		chunks:    chunks,
	}
}

func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	var req struct {
		CaseID  string `json:"case_id"`
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	doc, err := h.processor.ProcessDocument(c.Context(), ingestion.Input{
		CaseID:  req.CaseID,
		Name:    req.Name,
		Content: req.Content,
	})
	if err != nil {
		if errors.Is(err, ingestion.ErrMissingCaseID) || errors.Is(err, classifier.ErrEmptyContent) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to process document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":            doc.ID,
		"case_id":       doc.CaseID,
		"name":          doc.Name,
		"status":        doc.Status,
		"size_category": doc.SizeCategory,
		"strategy":      doc.Strategy,
	})
}

func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	doc, err := h.docs.GetDocument(c.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		}
		logger.Error("Failed to load document", zap.String("document_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load document",
		})
	}

	chunks, err := h.chunks.ListByDocument(c.Context(), id)
	if err != nil {
		logger.Warn("Failed to count chunks", zap.String("document_id", id), zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"id":            doc.ID,
		"case_id":       doc.CaseID,
		"name":          doc.Name,
		"status":        doc.Status,
		"size_category": doc.SizeCategory,
		"strategy":      doc.Strategy,
		"error":         doc.Error,
		"chunk_count":   len(chunks),
		"created_at":    doc.CreatedAt,
		"updated_at":    doc.UpdatedAt,
	})
}

func (h *DocumentHandler) List(c *fiber.Ctx) error {
	caseID := c.Query("case_id")
	if caseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "case_id is required",
		})
	}

	docs, err := h.docs.ListByCase(c.Context(), caseID)
	if err != nil {
		logger.Error("Failed to list documents", zap.String("case_id", caseID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	items := make([]fiber.Map, 0, len(docs))
	for _, doc := range docs {
		items = append(items, fiber.Map{
			"id":            doc.ID,
			"name":          doc.Name,
			"status":        doc.Status,
			"size_category": doc.SizeCategory,
			"strategy":      doc.Strategy,
		})
	}

	return c.JSON(fiber.Map{
		"case_id":   caseID,
		"documents": items,
	})
}

func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.processor.Delete(c.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		}
		logger.Error("Failed to delete document", zap.String("document_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}

	return c.JSON(fiber.Map{
		"deleted": id,
	})
}

func (h *DocumentHandler) Reprocess(c *fiber.Ctx) error {
	id := c.Params("id")

	doc, err := h.processor.Reprocess(c.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		case errors.Is(err, ingestion.ErrNotReprocessable):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to reprocess document", zap.String("document_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reprocess document",
		})
	}

	return c.JSON(fiber.Map{
		"id":     doc.ID,
		"status": doc.Status,
	})
}
