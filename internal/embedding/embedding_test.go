package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caserag/ragengine/internal/cache"
)

func TestFallbackDeterministic(t *testing.T) {
	f := NewFallback(768)

	v1, err := f.EmbedDocument(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	v2, err := f.EmbedDocument(context.Background(), "the quick brown fox")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 768)

	v3, err := f.EmbedDocument(context.Background(), "a different text")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
}

func TestFallbackUnitNorm(t *testing.T) {
	f := NewFallback(128)
	v, err := f.EmbedQuery(context.Background(), "some query")
	require.NoError(t, err)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestNormalize(t *testing.T) {
	short := []float32{1, 2}
	assert.Equal(t, []float32{1, 2, 0, 0}, Normalize(short, 4))

	long := []float32{1, 2, 3, 4, 5}
	assert.Equal(t, []float32{1, 2, 3}, Normalize(long, 3))

	exact := []float32{1, 2, 3}
	assert.Equal(t, exact, Normalize(exact, 3))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindRateLimit, Classify(&openai.APIError{HTTPStatusCode: 429}))
	assert.Equal(t, KindAuth, Classify(&openai.APIError{HTTPStatusCode: 401}))
	assert.Equal(t, KindAuth, Classify(&openai.APIError{HTTPStatusCode: 403}))
	assert.Equal(t, KindOther, Classify(&openai.APIError{HTTPStatusCode: 500}))
	assert.Equal(t, KindOther, Classify(errors.New("anything")))

	wrapped := &Error{Kind: KindConnection, Err: errors.New("dial tcp: refused")}
	assert.Equal(t, KindConnection, Classify(wrapped))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&Error{Kind: KindRateLimit, Err: errors.New("429")}))
	assert.True(t, Retryable(&Error{Kind: KindConnection, Err: errors.New("refused")}))
	assert.False(t, Retryable(&Error{Kind: KindAuth, Err: errors.New("401")}))
	assert.False(t, Retryable(&Error{Kind: KindOther, Err: errors.New("boom")}))
}

type countingProvider struct {
	calls int
	dim   int
}

func (p *countingProvider) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	p.calls++
	return make([]float32, p.dim), nil
}

func (p *countingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p.calls++
	return make([]float32, p.dim), nil
}

func (p *countingProvider) Dimension() int { return p.dim }

func TestCachedProviderSeparateNamespaces(t *testing.T) {
	ctx := context.Background()
	manager, err := cache.NewManager(64, nil)
	require.NoError(t, err)

	inner := &countingProvider{dim: 8}
	cached := NewCachedProvider(inner, manager, time.Hour, time.Minute)

	_, err = cached.EmbedDocument(ctx, "same text")
	require.NoError(t, err)
	_, err = cached.EmbedQuery(ctx, "same text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "doc and query embeddings are not interchangeable")

	_, err = cached.EmbedDocument(ctx, "same text")
	require.NoError(t, err)
	_, err = cached.EmbedQuery(ctx, "same text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "repeats served from cache")
}
