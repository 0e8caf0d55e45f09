package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/internal/vector"
	"github.com/caserag/ragengine/pkg/logger"
)

// Client stores chunk embeddings in Milvus. Vectors are unit-normalized
// upstream, so inner-product scores are cosine similarities.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Case document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "document_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "case_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "document_name",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "strategy",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:       "size_category",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "16"},
			},
			{
				Name:       "content",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))
	return nil
}

// Add upserts entries keyed by chunk id, so re-running the embedding
// pipeline overwrites instead of duplicating.
func (m *Client) Add(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(entries))
	docIDs := make([]string, len(entries))
	caseIDs := make([]string, len(entries))
	docNames := make([]string, len(entries))
	strategies := make([]string, len(entries))
	categories := make([]string, len(entries))
	contents := make([]string, len(entries))
	vectors := make([][]float32, len(entries))

	for i, e := range entries {
		chunkIDs[i] = e.ChunkID
		docIDs[i] = e.DocumentID
		caseIDs[i] = e.Metadata.CaseID
		docNames[i] = e.Metadata.DocumentName
		strategies[i] = string(e.Metadata.Strategy)
		categories[i] = string(e.Metadata.SizeCategory)
		contents[i] = e.Content
		vectors[i] = e.Vector
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnVarChar("document_id", docIDs),
		entity.NewColumnVarChar("case_id", caseIDs),
		entity.NewColumnVarChar("document_name", docNames),
		entity.NewColumnVarChar("strategy", strategies),
		entity.NewColumnVarChar("size_category", categories),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector("embedding", m.vectorDim, vectors),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Debug("Chunks upserted into vector store", zap.Int("count", len(entries)))
	return nil
}

func (m *Client) Search(ctx context.Context, queryVector []float32, filter vector.Filter, threshold float64, limit int) ([]vector.Match, error) {
	if limit <= 0 {
		return nil, nil
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		buildExpr(filter),
		[]string{"chunk_id", "document_id", "case_id", "document_name", "strategy", "size_category", "content"},
		[]entity.Vector{entity.FloatVector(queryVector)},
		"embedding",
		entity.IP,
		limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]vector.Match, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			if float64(sr.Scores[i]) < threshold {
				continue
			}

			match := vector.Match{Similarity: sr.Scores[i]}
			match.ChunkID = columnString(sr.Fields.GetColumn("chunk_id"), i)
			match.DocumentID = columnString(sr.Fields.GetColumn("document_id"), i)
			match.Content = columnString(sr.Fields.GetColumn("content"), i)
			match.Metadata = models.ChunkMetadata{
				CaseID:       columnString(sr.Fields.GetColumn("case_id"), i),
				DocumentName: columnString(sr.Fields.GetColumn("document_name"), i),
				Strategy:     models.Strategy(columnString(sr.Fields.GetColumn("strategy"), i)),
				SizeCategory: models.SizeCategory(columnString(sr.Fields.GetColumn("size_category"), i)),
			}
			matches = append(matches, match)
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("limit", limit),
		zap.Int("results", len(matches)),
	)
	return matches, nil
}

// DeleteByDocument resolves chunk ids first because deletes are keyed by
// primary key.
func (m *Client) DeleteByDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf(`document_id == "%s"`, documentID)
	results, err := m.client.Query(ctx, m.collectionName, []string{}, expr, []string{"chunk_id"})
	if err != nil {
		return fmt.Errorf("failed to query chunks for deletion: %w", err)
	}

	var ids []string
	for _, col := range results {
		if col.Name() != "chunk_id" {
			continue
		}
		for i := 0; i < col.Len(); i++ {
			ids = append(ids, columnString(col, i))
		}
	}
	if len(ids) == 0 {
		return nil
	}

	deleteExpr := fmt.Sprintf(`chunk_id in ["%s"]`, strings.Join(ids, `","`))
	err = m.client.Delete(ctx, m.collectionName, "", deleteExpr)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	logger.Info("Vector entries deleted",
		zap.String("document_id", documentID),
		zap.Int("count", len(ids)),
	)
	return nil
}

func buildExpr(filter vector.Filter) string {
	var clauses []string

	if len(filter.DocumentIDs) > 0 {
		clauses = append(clauses,
			fmt.Sprintf(`document_id in ["%s"]`, strings.Join(filter.DocumentIDs, `","`)))
	}
	if filter.CaseID != "" {
		clauses = append(clauses, fmt.Sprintf(`case_id == "%s"`, filter.CaseID))
	}
	if filter.Strategy != "" {
		clauses = append(clauses, fmt.Sprintf(`strategy == "%s"`, filter.Strategy))
	}

	return strings.Join(clauses, " && ")
}

func columnString(col entity.Column, i int) string {
	if col == nil {
		return ""
	}
	v, err := col.Get(i)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
