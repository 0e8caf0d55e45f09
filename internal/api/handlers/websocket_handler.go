package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/storage"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/pkg/logger"
)

const statusPollInterval = time.Second

// WebSocketHandler streams a document's lifecycle to clients waiting for
// background enrichment: each status change is pushed as it is observed,
// and the stream closes once the document reaches a terminal state.
type WebSocketHandler struct {
	docs storage.DocumentStore
}

func NewWebSocketHandler(docs storage.DocumentStore) *WebSocketHandler {
	return &WebSocketHandler{docs: docs}
}

func (h *WebSocketHandler) HandleDocumentStatus(c *websocket.Conn) {
	documentID := c.Params("id")
	logger.Info("Status stream opened", zap.String("document_id", documentID))

	defer func() {
		c.Close()
		logger.Info("Status stream closed", zap.String("document_id", documentID))
	}()

	// Detect client disconnect; reads are otherwise unused.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var last models.Status
	for {
		doc, err := h.docs.GetDocument(context.Background(), documentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.send(c, "error", "", "Document not found")
			} else {
				logger.Error("Status poll failed", zap.String("document_id", documentID), zap.Error(err))
				h.send(c, "error", "", "Status lookup failed")
			}
			return
		}

		if doc.Status != last {
			last = doc.Status
			if err := h.send(c, "status", doc.Status, doc.Error); err != nil {
				return
			}
		}

		if terminal(doc.Status) {
			return
		}

		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType string, status models.Status, errMsg string) error {
	msg := map[string]interface{}{
		"type": msgType,
	}
	if status != "" {
		msg["status"] = status
	}
	if errMsg != "" {
		msg["error"] = errMsg
	}
	return c.WriteJSON(msg)
}

// terminal reports whether the pipeline will never move this document
// again. A processed document may still become enhanced, so it is not
// terminal.
func terminal(status models.Status) bool {
	return status == models.StatusEnhanced || status == models.StatusFailed
}
