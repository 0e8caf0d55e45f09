package embedding

import (
	"context"
	"time"

	"github.com/caserag/ragengine/internal/cache"
	"github.com/caserag/ragengine/pkg/utils"
)

const (
	docKeyPrefix   = "emb:doc"
	queryKeyPrefix = "emb:query"
)

// CachedProvider fronts a Provider with the two-tier cache. Document
// and query embeddings use distinct namespaces and TTLs; a nil cache
// manager passes every call straight through.
type CachedProvider struct {
	inner    Provider
	cache    *cache.Manager
	docTTL   time.Duration
	queryTTL time.Duration
}

func NewCachedProvider(inner Provider, manager *cache.Manager, docTTL, queryTTL time.Duration) *CachedProvider {
	if docTTL == 0 {
		docTTL = 7 * 24 * time.Hour
	}
	if queryTTL == 0 {
		queryTTL = time.Hour
	}
	return &CachedProvider{
		inner:    inner,
		cache:    manager,
		docTTL:   docTTL,
		queryTTL: queryTTL,
	}
}

func (p *CachedProvider) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key(docKeyPrefix, utils.HashString(text))
	return cache.Through(ctx, p.cache, key, p.docTTL, func(ctx context.Context) ([]float32, error) {
		return p.inner.EmbedDocument(ctx, text)
	})
}

func (p *CachedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key(queryKeyPrefix, utils.HashString(text))
	return cache.Through(ctx, p.cache, key, p.queryTTL, func(ctx context.Context) ([]float32, error) {
		return p.inner.EmbedQuery(ctx, text)
	})
}

func (p *CachedProvider) Dimension() int {
	return p.inner.Dimension()
}
