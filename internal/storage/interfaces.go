package storage

import (
	"context"
	"errors"

	"github.com/caserag/ragengine/internal/storage/models"
)

var ErrNotFound = errors.New("not found")

type DocumentStore interface {
	InsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// ListByCase returns documents for a case filtered to the given
	// statuses; an empty status list means no filter.
	ListByCase(ctx context.Context, caseID string, statuses ...models.Status) ([]*models.Document, error)
	// UpdateStatus enforces the lifecycle state machine and persists the
	// optional error string alongside the new status.
	UpdateStatus(ctx context.Context, id string, status models.Status, errMsg string) error
	DeleteDocument(ctx context.Context, id string) error
}

type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunks(ctx context.Context, ids []string) ([]*models.Chunk, error)
	ListByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}
