package vector

import (
	"context"

	"github.com/caserag/ragengine/internal/storage/models"
)

// Entry is one chunk's embedding plus the metadata needed to label
// search results without a relational lookup.
type Entry struct {
	ChunkID    string
	DocumentID string
	Content    string
	Vector     []float32
	Metadata   models.ChunkMetadata
}

// Match is a similarity-search result. Similarity is cosine, computed at
// query time; it is never stored.
type Match struct {
	ChunkID    string               `json:"chunk_id"`
	DocumentID string               `json:"document_id"`
	Content    string               `json:"content"`
	Similarity float32              `json:"similarity"`
	Metadata   models.ChunkMetadata `json:"metadata"`
}

// Filter narrows a search to a document set, a case, and/or a strategy
// pool. Zero values mean "no constraint".
type Filter struct {
	DocumentIDs []string
	CaseID      string
	Strategy    models.Strategy
}

// Store is the vector database contract. Add must upsert so re-embedding
// a chunk overwrites rather than duplicates.
type Store interface {
	Add(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, queryVector []float32, filter Filter, threshold float64, limit int) ([]Match, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}
