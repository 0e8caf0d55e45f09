package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/cache"
	"github.com/caserag/ragengine/internal/embedding"
	"github.com/caserag/ragengine/internal/metrics"
	"github.com/caserag/ragengine/internal/storage"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/internal/vector"
	"github.com/caserag/ragengine/pkg/logger"
	"github.com/caserag/ragengine/pkg/utils"
)

var (
	ErrEmptyQuery = errors.New("query must not be empty")
	ErrEmptyScope = errors.New("search scope resolves to no documents")
)

// Request describes one hybrid search. Scope is either an explicit
// document id list or a case id expanded to that case's searchable
// documents. Distribution weights how many results each strategy pool
// contributes; nil means the configured default split.
type Request struct {
	Query        string
	CaseID       string
	DocumentIDs  []string
	Limit        int
	Threshold    float64
	Distribution map[models.Strategy]float64
}

// Result is one ranked chunk. DocumentName and DocumentStatus are
// attached best-effort and may be empty when the metadata lookup failed.
type Result struct {
	ChunkID        string          `json:"chunk_id"`
	DocumentID     string          `json:"document_id"`
	Content        string          `json:"content"`
	Similarity     float32         `json:"similarity"`
	Strategy       models.Strategy `json:"strategy"`
	DocumentName   string          `json:"document_name,omitempty"`
	DocumentStatus models.Status   `json:"document_status,omitempty"`
}

// Response bundles the ranked results with the generator-ready context
// block built from them.
type Response struct {
	Results  []Result `json:"results"`
	Context  string   `json:"context"`
	Total    int      `json:"total"`
	Searched int      `json:"documents_searched"`
}

type Config struct {
	DefaultLimit      int
	DefaultThreshold  float64
	ContextCharBudget int
	SearchTTL         time.Duration
}

// Engine blends per-strategy vector search pools into one ranked,
// deduplicated context window.
type Engine struct {
	docs     storage.DocumentStore
	vectors  vector.Store
	embedder embedding.Provider
	cache    *cache.Manager
	cfg      Config
}

func NewEngine(docs storage.DocumentStore, vectors vector.Store, embedder embedding.Provider, manager *cache.Manager, cfg Config) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 0.7
	}
	if cfg.ContextCharBudget <= 0 {
		cfg.ContextCharBudget = 8000
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = 6 * time.Hour
	}
	return &Engine{
		docs:     docs,
		vectors:  vectors,
		embedder: embedder,
		cache:    manager,
		cfg:      cfg,
	}
}

// Search runs the hybrid retrieval flow: scope resolution, query
// embedding, quota-bounded per-strategy similarity search, merge,
// dedupe, rank, and context assembly. A query-embedding failure aborts
// the search; per-result metadata failures do not.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = e.cfg.DefaultThreshold
	}

	docIDs, err := e.resolveScope(ctx, req)
	if err != nil {
		metrics.SearchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	queryVector, err := e.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		metrics.SearchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	quotas := strategyQuotas(req.Distribution, limit)

	var merged []vector.Match
	for _, strategy := range models.Strategies() {
		quota := quotas[strategy]
		if quota == 0 {
			continue
		}
		matches, err := e.searchStrategy(ctx, req, queryVector, docIDs, strategy, threshold, quota)
		if err != nil {
			logger.Warn("Strategy pool search failed",
				zap.String("strategy", string(strategy)),
				zap.Error(err),
			)
			continue
		}
		merged = append(merged, matches...)
	}

	results := rank(merged, limit)
	e.attachMetadata(ctx, results)

	resp := &Response{
		Results:  results,
		Context:  buildContext(results, e.cfg.ContextCharBudget),
		Total:    len(results),
		Searched: len(docIDs),
	}

	metrics.SearchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	metrics.SearchResults.Observe(float64(len(results)))

	logger.Info("Hybrid search complete",
		zap.Int("documents_in_scope", len(docIDs)),
		zap.Int("results", len(results)),
		zap.Duration("took", time.Since(start)),
	)
	return resp, nil
}

// resolveScope expands a case id to its searchable document ids unless
// the request already names documents explicitly.
func (e *Engine) resolveScope(ctx context.Context, req Request) ([]string, error) {
	if len(req.DocumentIDs) > 0 {
		return req.DocumentIDs, nil
	}
	if req.CaseID == "" {
		return nil, ErrEmptyScope
	}

	docs, err := e.docs.ListByCase(ctx, req.CaseID, models.StatusProcessed, models.StatusEnhanced)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve case scope: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrEmptyScope
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func (e *Engine) searchStrategy(ctx context.Context, req Request, queryVector []float32, docIDs []string, strategy models.Strategy, threshold float64, quota int) ([]vector.Match, error) {
	key := cache.Key("search",
		req.CaseID,
		utils.ShortHash(fmt.Sprint(docIDs)),
		string(strategy),
		quota,
		threshold,
		utils.ShortHash(req.Query),
	)
	return cache.Through(ctx, e.cache, key, e.cfg.SearchTTL, func(ctx context.Context) ([]vector.Match, error) {
		filter := vector.Filter{
			DocumentIDs: docIDs,
			CaseID:      req.CaseID,
			Strategy:    strategy,
		}
		return e.vectors.Search(ctx, queryVector, filter, threshold, quota)
	})
}

// rank dedupes by chunk id keeping the first occurrence, sorts by
// similarity descending, and truncates to limit.
func rank(matches []vector.Match, limit int) []Result {
	seen := make(map[string]struct{}, len(matches))
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m.ChunkID]; dup {
			continue
		}
		seen[m.ChunkID] = struct{}{}
		results = append(results, Result{
			ChunkID:    m.ChunkID,
			DocumentID: m.DocumentID,
			Content:    m.Content,
			Similarity: m.Similarity,
			Strategy:   m.Metadata.Strategy,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// attachMetadata decorates results with document name and status. A
// lookup failure is logged and leaves the result in place with the
// metadata fields empty.
func (e *Engine) attachMetadata(ctx context.Context, results []Result) {
	looked := make(map[string]*models.Document)
	for i := range results {
		id := results[i].DocumentID
		doc, ok := looked[id]
		if !ok {
			var err error
			doc, err = e.docs.GetDocument(ctx, id)
			if err != nil {
				logger.Warn("Document metadata lookup failed",
					zap.String("document_id", id),
					zap.Error(err),
				)
				looked[id] = nil
				continue
			}
			looked[id] = doc
		}
		if doc == nil {
			continue
		}
		results[i].DocumentName = doc.Name
		results[i].DocumentStatus = doc.Status
	}
}
