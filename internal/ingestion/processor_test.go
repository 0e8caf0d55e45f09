package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caserag/ragengine/internal/classifier"
	"github.com/caserag/ragengine/internal/pipeline"
	"github.com/caserag/ragengine/internal/storage"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/internal/storage/sqlite"
	"github.com/caserag/ragengine/internal/vector"
)

type recordingScheduler struct {
	tasks []pipeline.Task
}

func (s *recordingScheduler) Schedule(task pipeline.Task) {
	s.tasks = append(s.tasks, task)
}

type recordingVectorStore struct {
	deleted []string
}

func (s *recordingVectorStore) Add(ctx context.Context, entries []vector.Entry) error { return nil }

func (s *recordingVectorStore) Search(ctx context.Context, queryVector []float32, filter vector.Filter, threshold float64, limit int) ([]vector.Match, error) {
	return nil, nil
}

func (s *recordingVectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	s.deleted = append(s.deleted, documentID)
	return nil
}

func setupProcessor(t *testing.T) (*Processor, *sqlite.Client, *recordingScheduler, *recordingVectorStore) {
	t.Helper()

	db, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	sched := &recordingScheduler{}
	vectors := &recordingVectorStore{}
	proc := NewProcessor(db, db, vectors, nil, classifier.New(20000, 60000), sched, Config{
		ChunkTargetSize: 1000,
		ChunkOverlap:    200,
	})
	return proc, db, sched, vectors
}

func TestProcessDocumentSynchronousPath(t *testing.T) {
	proc, db, sched, _ := setupProcessor(t)
	ctx := context.Background()

	content := strings.Repeat("The parties agree to the following terms. ", 360) // ~15k chars
	doc, err := proc.ProcessDocument(ctx, Input{
		CaseID:  "case-1",
		Name:    "agreement.txt",
		Content: content,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusProcessed, doc.Status)
	assert.Equal(t, models.SizeSmall, doc.SizeCategory)
	assert.Equal(t, models.StrategyDirectLLM, doc.Strategy)

	stored, err := db.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, stored.Status)

	chunks, err := db.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "agreement.txt", chunks[0].Metadata.DocumentName)
	assert.Equal(t, models.StrategyDirectLLM, chunks[0].Metadata.Strategy)

	require.Len(t, sched.tasks, 1)
	task := sched.tasks[0]
	assert.Equal(t, doc.ID, task.DocumentID)
	assert.Equal(t, models.SizeSmall, task.Category)
	assert.Len(t, task.ChunkIDs, len(chunks))
}

func TestProcessDocumentValidation(t *testing.T) {
	proc, _, sched, _ := setupProcessor(t)
	ctx := context.Background()

	_, err := proc.ProcessDocument(ctx, Input{Name: "x.txt", Content: "hello"})
	assert.ErrorIs(t, err, ErrMissingCaseID)

	_, err = proc.ProcessDocument(ctx, Input{CaseID: "case-1", Name: "x.txt"})
	assert.ErrorIs(t, err, classifier.ErrEmptyContent)

	assert.Empty(t, sched.tasks, "nothing scheduled for rejected uploads")
}

func TestProcessDocumentStripsHTML(t *testing.T) {
	proc, db, _, _ := setupProcessor(t)
	ctx := context.Background()

	doc, err := proc.ProcessDocument(ctx, Input{
		CaseID:  "case-1",
		Name:    "page.html",
		Content: "<!DOCTYPE html><html><head><style>p{color:red}</style></head><body><p>First paragraph.</p><p>Second paragraph.</p></body></html>",
	})
	require.NoError(t, err)

	stored, err := db.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", stored.Content)
	assert.NotContains(t, stored.Content, "color:red")
}

func TestDeleteCascades(t *testing.T) {
	proc, db, _, vectors := setupProcessor(t)
	ctx := context.Background()

	doc, err := proc.ProcessDocument(ctx, Input{
		CaseID:  "case-1",
		Name:    "a.txt",
		Content: strings.Repeat("word ", 500),
	})
	require.NoError(t, err)

	require.NoError(t, proc.Delete(ctx, doc.ID))

	_, err = db.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	chunks, err := db.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks, "chunk rows cascade with the document")

	assert.Equal(t, []string{doc.ID}, vectors.deleted)

	assert.ErrorIs(t, proc.Delete(ctx, doc.ID), storage.ErrNotFound)
}

func TestReprocessIsIdempotent(t *testing.T) {
	proc, db, sched, vectors := setupProcessor(t)
	ctx := context.Background()

	doc, err := proc.ProcessDocument(ctx, Input{
		CaseID:  "case-1",
		Name:    "a.txt",
		Content: strings.Repeat("sentence here. ", 400),
	})
	require.NoError(t, err)

	first, err := db.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)

	_, err = proc.Reprocess(ctx, doc.ID)
	require.NoError(t, err)
	_, err = proc.Reprocess(ctx, doc.ID)
	require.NoError(t, err)

	after, err := db.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(first), "chunk count stable across reprocess runs")

	// One schedule per process/reprocess, stale vectors dropped each time.
	assert.Len(t, sched.tasks, 3)
	assert.Equal(t, []string{doc.ID, doc.ID}, vectors.deleted)
}

func TestCleanContentPassthrough(t *testing.T) {
	plain := "Just a plain text document.\n\nWith two paragraphs, and a < sign."
	assert.Equal(t, plain, cleanContent(plain))
}
