package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/cache"
	"github.com/caserag/ragengine/internal/chunker"
	"github.com/caserag/ragengine/internal/classifier"
	"github.com/caserag/ragengine/internal/metrics"
	"github.com/caserag/ragengine/internal/pipeline"
	"github.com/caserag/ragengine/internal/storage"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/internal/vector"
	"github.com/caserag/ragengine/pkg/logger"
)

var (
	ErrMissingCaseID    = errors.New("case id is required")
	ErrNotReprocessable = errors.New("document has no stored content to reprocess")
)

// TaskScheduler accepts embedding tasks for background execution.
type TaskScheduler interface {
	Schedule(task pipeline.Task)
}

// Input is one document upload.
type Input struct {
	CaseID  string
	Name    string
	Content string
}

type Config struct {
	ChunkTargetSize int
	ChunkOverlap    int
}

// Processor owns the synchronous ingestion path: store, classify, chunk,
// persist, then hand the document to the embedding pipeline. A document
// is searchable for direct-strategy generation as soon as ProcessDocument
// returns; vector enrichment catches up in the background.
type Processor struct {
	docs      storage.DocumentStore
	chunks    storage.ChunkStore
	vectors   vector.Store
	cache     *cache.Manager
	classify  *classifier.Classifier
	scheduler TaskScheduler
	cfg       Config
}

func NewProcessor(
	docs storage.DocumentStore,
	chunks storage.ChunkStore,
	vectors vector.Store,
	manager *cache.Manager,
	cls *classifier.Classifier,
	scheduler TaskScheduler,
	cfg Config,
) *Processor {
	if cfg.ChunkTargetSize <= 0 {
		cfg.ChunkTargetSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	return &Processor{
		docs:      docs,
		chunks:    chunks,
		vectors:   vectors,
		cache:     manager,
		classify:  cls,
		scheduler: scheduler,
		cfg:       cfg,
	}
}

// ProcessDocument runs the synchronous path to completion: the returned
// document is already processed with its chunks stored, and an embedding
// task has been scheduled. Classification errors surface immediately and
// leave nothing behind.
func (p *Processor) ProcessDocument(ctx context.Context, in Input) (*models.Document, error) {
	if in.CaseID == "" {
		return nil, ErrMissingCaseID
	}

	content := cleanContent(in.Content)

	category, strategy, err := p.classify.Classify(content)
	if err != nil {
		return nil, fmt.Errorf("failed to classify document: %w", err)
	}

	now := time.Now()
	doc := &models.Document{
		ID:           uuid.NewString(),
		CaseID:       in.CaseID,
		Name:         in.Name,
		Content:      content,
		Status:       models.StatusUploaded,
		SizeCategory: category,
		Strategy:     strategy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.docs.InsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := p.docs.UpdateStatus(ctx, doc.ID, models.StatusProcessing, ""); err != nil {
		return nil, err
	}
	doc.Status = models.StatusProcessing

	chunkIDs, err := p.persistChunks(ctx, doc)
	if err != nil {
		p.fail(ctx, doc, err)
		return nil, err
	}

	if err := p.docs.UpdateStatus(ctx, doc.ID, models.StatusProcessed, ""); err != nil {
		p.fail(ctx, doc, err)
		return nil, err
	}
	doc.Status = models.StatusProcessed

	// Stale search results for this case are now wrong.
	p.invalidateCase(ctx, doc.CaseID)

	p.scheduler.Schedule(pipeline.Task{
		DocumentID: doc.ID,
		ChunkIDs:   chunkIDs,
		Category:   category,
	})

	metrics.DocumentsProcessed.WithLabelValues(string(category)).Inc()
	logger.Info("Document ingested",
		zap.String("document_id", doc.ID),
		zap.String("case_id", doc.CaseID),
		zap.String("size_category", string(category)),
		zap.String("strategy", string(strategy)),
		zap.Int("chunks", len(chunkIDs)),
	)
	return doc, nil
}

// Delete removes a document everywhere: vector entries, relational rows
// (chunks cascade), and any cache entries keyed on it.
func (p *Processor) Delete(ctx context.Context, documentID string) error {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if err := p.vectors.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if err := p.docs.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	if p.cache != nil {
		p.cache.InvalidateDocument(ctx, documentID)
		p.invalidateCase(ctx, doc.CaseID)
	}

	logger.Info("Document deleted", zap.String("document_id", documentID))
	return nil
}

// Reprocess rebuilds a document's chunks and vectors from its stored
// content. Old chunks and vectors are dropped first, so running it twice
// is equivalent to running it once.
func (p *Processor) Reprocess(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Content == "" {
		return nil, ErrNotReprocessable
	}

	if err := p.vectors.DeleteByDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("failed to clear vectors: %w", err)
	}
	if err := p.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("failed to clear chunks: %w", err)
	}
	if p.cache != nil {
		p.cache.InvalidateDocument(ctx, documentID)
		p.invalidateCase(ctx, doc.CaseID)
	}

	category, strategy, err := p.classify.Classify(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to classify document: %w", err)
	}
	doc.SizeCategory = category
	doc.Strategy = strategy

	chunkIDs, err := p.persistChunks(ctx, doc)
	if err != nil {
		p.fail(ctx, doc, err)
		return nil, err
	}

	p.scheduler.Schedule(pipeline.Task{
		DocumentID: doc.ID,
		ChunkIDs:   chunkIDs,
		Category:   category,
	})

	logger.Info("Document reprocessed",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(chunkIDs)),
	)
	return doc, nil
}

func (p *Processor) persistChunks(ctx context.Context, doc *models.Document) ([]string, error) {
	pieces := chunker.Chunk(doc.Content, p.cfg.ChunkTargetSize, p.cfg.ChunkOverlap)

	now := time.Now()
	meta := models.ChunkMetadata{
		DocumentName: doc.Name,
		SizeCategory: doc.SizeCategory,
		Strategy:     doc.Strategy,
		CaseID:       doc.CaseID,
	}

	chunks := make([]*models.Chunk, 0, len(pieces))
	ids := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		id := uuid.NewString()
		chunks = append(chunks, &models.Chunk{
			ID:         id,
			DocumentID: doc.ID,
			Index:      i,
			Content:    piece,
			Metadata:   meta,
			CreatedAt:  now,
		})
		ids = append(ids, id)
	}

	if err := p.chunks.InsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	metrics.ChunksStored.Add(float64(len(chunks)))
	return ids, nil
}

func (p *Processor) invalidateCase(ctx context.Context, caseID string) {
	if p.cache == nil {
		return
	}
	p.cache.InvalidateCase(ctx, caseID)
}

func (p *Processor) fail(ctx context.Context, doc *models.Document, cause error) {
	if err := p.docs.UpdateStatus(ctx, doc.ID, models.StatusFailed, cause.Error()); err != nil {
		logger.Error("Failed to mark document failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}
	doc.Status = models.StatusFailed
}
