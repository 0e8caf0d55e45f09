package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/embedding"
	"github.com/caserag/ragengine/internal/metrics"
	"github.com/caserag/ragengine/internal/storage"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/internal/vector"
	"github.com/caserag/ragengine/pkg/logger"
	"github.com/caserag/ragengine/pkg/retry"
)

const DefaultSubBatchSize = 4

// Task is one unit of background enrichment: embed a document's chunks
// and flip the document to enhanced.
type Task struct {
	DocumentID string
	ChunkIDs   []string
	Category   models.SizeCategory
}

type Result struct {
	Processed    int
	Failed       int
	FallbackUsed bool
}

// transientError marks a failure worth retrying the whole task for:
// provider outages are typically batch-wide, so retrying one item at a
// time would just burn the budget.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func taskRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Runner executes embedding tasks. It is safe to re-run a task for an
// already-embedded document: the vector store upserts and the status
// transition simply no-ops at the boundary.
type Runner struct {
	docs         storage.DocumentStore
	chunks       storage.ChunkStore
	embedder     embedding.Provider
	fallback     embedding.Provider
	vectors      vector.Store
	subBatchSize int
	retryCfg     retry.Config
}

type RunnerConfig struct {
	SubBatchSize int
	MaxAttempts  int
	BaseDelay    time.Duration
}

func NewRunner(
	docs storage.DocumentStore,
	chunks storage.ChunkStore,
	embedder embedding.Provider,
	fallback embedding.Provider,
	vectors vector.Store,
	cfg RunnerConfig,
) *Runner {
	if cfg.SubBatchSize <= 0 {
		cfg.SubBatchSize = DefaultSubBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}

	return &Runner{
		docs:         docs,
		chunks:       chunks,
		embedder:     embedder,
		fallback:     fallback,
		vectors:      vectors,
		subBatchSize: cfg.SubBatchSize,
		retryCfg: retry.Config{
			MaxAttempts:    cfg.MaxAttempts,
			InitialDelay:   cfg.BaseDelay,
			MaxDelay:       30 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			RetryIf:        taskRetryable,
			Logger:         logger.GetLogger(),
		},
	}
}

// Run embeds the task's chunks in sub-batches, flushing each batch to
// the vector store before continuing. Individual chunk failures are
// counted and tolerated; transient provider failures retry the whole
// task with exponential backoff; an auth failure switches the task to
// the deterministic local embedder so enrichment degrades rather than
// stalls. The document becomes enhanced only if at least one chunk
// embedded successfully.
func (r *Runner) Run(ctx context.Context, task Task) (Result, error) {
	chunks, err := r.chunks.GetChunks(ctx, task.ChunkIDs)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		logger.Warn("Embedding task has no chunks", zap.String("document_id", task.DocumentID))
		return Result{}, nil
	}

	var result Result
	err = retry.Do(ctx, r.retryCfg, func() error {
		var attemptErr error
		result, attemptErr = r.attempt(ctx, task, chunks)
		return attemptErr
	})

	if err != nil {
		metrics.EmbeddingTasks.WithLabelValues("failed").Inc()
		logger.Error("Embedding task failed, document stays processed",
			zap.String("document_id", task.DocumentID),
			zap.Error(err),
		)
		return result, err
	}

	if result.Processed > 0 {
		if err := r.docs.UpdateStatus(ctx, task.DocumentID, models.StatusEnhanced, ""); err != nil {
			var illegal *models.IllegalTransitionError
			if errors.As(err, &illegal) {
				// Re-run against an already-enhanced document.
				logger.Debug("Skipping status flip", zap.String("document_id", task.DocumentID))
			} else {
				return result, fmt.Errorf("failed to mark document enhanced: %w", err)
			}
		}
		metrics.EmbeddingTasks.WithLabelValues("completed").Inc()
	} else {
		metrics.EmbeddingTasks.WithLabelValues("exhausted").Inc()
		logger.Warn("No chunk embeddings succeeded, document stays processed",
			zap.String("document_id", task.DocumentID),
			zap.Int("chunks_failed", result.Failed),
		)
	}

	logger.Info("Embedding task finished",
		zap.String("document_id", task.DocumentID),
		zap.Int("chunks_processed", result.Processed),
		zap.Int("chunks_failed", result.Failed),
		zap.Bool("fallback_used", result.FallbackUsed),
	)
	return result, nil
}

func (r *Runner) attempt(ctx context.Context, task Task, chunks []*models.Chunk) (Result, error) {
	var result Result
	useFallback := false

	for start := 0; start < len(chunks); start += r.subBatchSize {
		end := start + r.subBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		entries := make([]vector.Entry, 0, end-start)
		for _, chunk := range chunks[start:end] {
			vec, err := r.embedChunk(ctx, chunk, useFallback)
			if err != nil {
				switch embedding.Classify(err) {
				case embedding.KindRateLimit, embedding.KindConnection:
					return result, &transientError{err}
				case embedding.KindAuth:
					useFallback = true
					result.FallbackUsed = true
					metrics.EmbeddingFallbacks.Inc()
					logger.Warn("Auth failure, degrading to deterministic fallback embedder",
						zap.String("document_id", task.DocumentID))
					vec, err = r.embedChunk(ctx, chunk, true)
					if err != nil {
						result.Failed++
						metrics.EmbeddingChunks.WithLabelValues("failed").Inc()
						continue
					}
				default:
					result.Failed++
					metrics.EmbeddingChunks.WithLabelValues("failed").Inc()
					logger.Warn("Chunk embedding failed",
						zap.String("chunk_id", chunk.ID), zap.Error(err))
					continue
				}
			}

			entries = append(entries, vector.Entry{
				ChunkID:    chunk.ID,
				DocumentID: chunk.DocumentID,
				Content:    chunk.Content,
				Vector:     vec,
				Metadata:   chunk.Metadata,
			})
			result.Processed++
			metrics.EmbeddingChunks.WithLabelValues("processed").Inc()
		}

		// Flush each sub-batch before continuing so peak memory stays
		// bounded regardless of document size.
		if len(entries) > 0 {
			if err := r.vectors.Add(ctx, entries); err != nil {
				return result, &transientError{fmt.Errorf("vector store flush failed: %w", err)}
			}
		}
	}

	return result, nil
}

func (r *Runner) embedChunk(ctx context.Context, chunk *models.Chunk, useFallback bool) ([]float32, error) {
	if useFallback {
		return r.fallback.EmbedDocument(ctx, chunk.Content)
	}
	return r.embedder.EmbedDocument(ctx, chunk.Content)
}
