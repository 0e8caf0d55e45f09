package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caserag/ragengine/internal/embedding"
	"github.com/caserag/ragengine/internal/storage"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/internal/vector"
)

type fakeDocStore struct {
	mu       sync.Mutex
	statuses map[string]models.Status
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{statuses: make(map[string]models.Status)}
}

func (s *fakeDocStore) InsertDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[doc.ID] = doc.Status
	return nil
}

func (s *fakeDocStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &models.Document{ID: id, Status: status}, nil
}

func (s *fakeDocStore) ListByCase(ctx context.Context, caseID string, statuses ...models.Status) ([]*models.Document, error) {
	return nil, nil
}

func (s *fakeDocStore) UpdateStatus(ctx context.Context, id string, status models.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.statuses[id]
	if !ok {
		return storage.ErrNotFound
	}
	if !current.CanTransition(status) {
		return &models.IllegalTransitionError{From: current, To: status}
	}
	s.statuses[id] = status
	return nil
}

func (s *fakeDocStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, id)
	return nil
}

func (s *fakeDocStore) status(id string) models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id]
}

type fakeChunkStore struct {
	chunks map[string]*models.Chunk
}

func (s *fakeChunkStore) InsertChunks(ctx context.Context, chunks []*models.Chunk) error {
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *fakeChunkStore) GetChunks(ctx context.Context, ids []string) ([]*models.Chunk, error) {
	var out []*models.Chunk
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *fakeChunkStore) ListByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error) {
	var out []*models.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

// scriptedProvider fails for configured chunk contents, optionally with
// a classified error kind, and can fail wholesale for the first N calls.
type scriptedProvider struct {
	mu        sync.Mutex
	failFor   map[string]embedding.Kind
	failFirst int
	firstKind embedding.Kind
	calls     int
}

func (p *scriptedProvider) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failFirst > 0 {
		p.failFirst--
		return nil, &embedding.Error{Kind: p.firstKind, Err: errors.New("scripted failure")}
	}
	if kind, ok := p.failFor[text]; ok {
		return nil, &embedding.Error{Kind: kind, Err: errors.New("scripted chunk failure")}
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (p *scriptedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.EmbedDocument(ctx, text)
}

func (p *scriptedProvider) Dimension() int { return 3 }

type fakeVectorStore struct {
	mu      sync.Mutex
	entries map[string]vector.Entry
	adds    int
	failAdd bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{entries: make(map[string]vector.Entry)}
}

func (s *fakeVectorStore) Add(ctx context.Context, entries []vector.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd {
		return errors.New("vector store down")
	}
	s.adds++
	for _, e := range entries {
		s.entries[e.ChunkID] = e
	}
	return nil
}

func (s *fakeVectorStore) Search(ctx context.Context, queryVector []float32, filter vector.Filter, threshold float64, limit int) ([]vector.Match, error) {
	return nil, nil
}

func (s *fakeVectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return nil
}

func setupTask(t *testing.T, docID string, chunkCount int) (*fakeDocStore, *fakeChunkStore, Task) {
	t.Helper()

	docs := newFakeDocStore()
	docs.statuses[docID] = models.StatusProcessed

	chunks := &fakeChunkStore{chunks: make(map[string]*models.Chunk)}
	task := Task{DocumentID: docID, Category: models.SizeSmall}
	for i := 0; i < chunkCount; i++ {
		id := fmt.Sprintf("%s-chunk-%d", docID, i)
		chunks.chunks[id] = &models.Chunk{
			ID:         id,
			DocumentID: docID,
			Index:      i,
			Content:    fmt.Sprintf("chunk content %d", i),
		}
		task.ChunkIDs = append(task.ChunkIDs, id)
	}
	return docs, chunks, task
}

func newTestRunner(docs storage.DocumentStore, chunks storage.ChunkStore, provider embedding.Provider, vectors vector.Store) *Runner {
	return NewRunner(docs, chunks, provider, embedding.NewFallback(3), vectors, RunnerConfig{
		SubBatchSize: 4,
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
	})
}

func TestRunPartialChunkFailures(t *testing.T) {
	docs, chunks, task := setupTask(t, "doc-1", 10)

	// Chunks 3 and 7 (zero-based 2 and 6) fail with non-retryable errors.
	provider := &scriptedProvider{failFor: map[string]embedding.Kind{
		"chunk content 2": embedding.KindOther,
		"chunk content 6": embedding.KindOther,
	}}
	vectors := newFakeVectorStore()

	runner := newTestRunner(docs, chunks, provider, vectors)
	result, err := runner.Run(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, 8, result.Processed)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, models.StatusEnhanced, docs.status("doc-1"),
		"document enhanced despite individual chunk failures")
	assert.Len(t, vectors.entries, 8)
}

func TestRunTransientErrorRetriesWholeTask(t *testing.T) {
	docs, chunks, task := setupTask(t, "doc-2", 5)

	// The first call hits a rate limit; the retry succeeds end to end.
	provider := &scriptedProvider{failFirst: 1, firstKind: embedding.KindRateLimit}
	vectors := newFakeVectorStore()

	runner := newTestRunner(docs, chunks, provider, vectors)
	result, err := runner.Run(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, models.StatusEnhanced, docs.status("doc-2"))
}

func TestRunTransientErrorExhaustsRetries(t *testing.T) {
	docs, chunks, task := setupTask(t, "doc-3", 3)

	provider := &scriptedProvider{failFirst: 100, firstKind: embedding.KindConnection}
	vectors := newFakeVectorStore()

	runner := newTestRunner(docs, chunks, provider, vectors)
	_, err := runner.Run(context.Background(), task)

	require.Error(t, err)
	assert.Equal(t, models.StatusProcessed, docs.status("doc-3"),
		"document never silently becomes enhanced")
}

func TestRunAuthErrorFallsBack(t *testing.T) {
	docs, chunks, task := setupTask(t, "doc-4", 4)

	provider := &scriptedProvider{failFirst: 100, firstKind: embedding.KindAuth}
	vectors := newFakeVectorStore()

	runner := newTestRunner(docs, chunks, provider, vectors)
	result, err := runner.Run(context.Background(), task)

	require.NoError(t, err)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, 4, result.Processed)
	assert.Equal(t, models.StatusEnhanced, docs.status("doc-4"))

	// Fallback vectors are deterministic for identical text.
	e1 := vectors.entries["doc-4-chunk-0"]
	fallback := embedding.NewFallback(3)
	expected, _ := fallback.EmbedDocument(context.Background(), "chunk content 0")
	assert.Equal(t, expected, e1.Vector)
}

func TestRunVectorStoreFailure(t *testing.T) {
	docs, chunks, task := setupTask(t, "doc-5", 2)

	provider := &scriptedProvider{}
	vectors := newFakeVectorStore()
	vectors.failAdd = true

	runner := newTestRunner(docs, chunks, provider, vectors)
	_, err := runner.Run(context.Background(), task)

	require.Error(t, err)
	assert.Equal(t, models.StatusProcessed, docs.status("doc-5"))
}

func TestRunRerunOverwrites(t *testing.T) {
	docs, chunks, task := setupTask(t, "doc-6", 3)

	provider := &scriptedProvider{}
	vectors := newFakeVectorStore()

	runner := newTestRunner(docs, chunks, provider, vectors)
	_, err := runner.Run(context.Background(), task)
	require.NoError(t, err)

	// Second run: upsert, no duplicates, no illegal transition error.
	_, err = runner.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Len(t, vectors.entries, 3)
	assert.Equal(t, models.StatusEnhanced, docs.status("doc-6"))
}

func TestSchedulerDispatchesAfterDelay(t *testing.T) {
	docs, chunks, task := setupTask(t, "doc-7", 2)

	provider := &scriptedProvider{}
	vectors := newFakeVectorStore()
	runner := newTestRunner(docs, chunks, provider, vectors)

	sched, err := NewScheduler(runner, 2, WithDelayFn(func(models.SizeCategory) time.Duration {
		return 10 * time.Millisecond
	}))
	require.NoError(t, err)

	sched.Schedule(task)

	require.Eventually(t, func() bool {
		return docs.status("doc-7") == models.StatusEnhanced
	}, 2*time.Second, 10*time.Millisecond)

	sched.Close()
}
