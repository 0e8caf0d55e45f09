package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/retrieval"
	"github.com/caserag/ragengine/internal/storage"
	"github.com/caserag/ragengine/internal/storage/models"
	"github.com/caserag/ragengine/pkg/logger"
)

var ErrNoContext = errors.New("no context available for generation")

// TextGenerator produces an answer grounded in the supplied context
// block.
type TextGenerator interface {
	Generate(ctx context.Context, query, contextBlock string) (string, error)
}

// Searcher is the retrieval surface the answer service consumes.
type Searcher interface {
	Search(ctx context.Context, req retrieval.Request) (*retrieval.Response, error)
}

// Answer is a generated response plus the retrieval evidence behind it.
type Answer struct {
	Text    string             `json:"text"`
	Results []retrieval.Result `json:"results"`
	Context string             `json:"context"`
}

type Config struct {
	ContextCharBudget int
}

// Service answers questions over a case's documents: hybrid retrieval
// builds the context block, the generator turns it into prose. Documents
// on the direct strategy stay answerable before enrichment lands: when
// retrieval yields nothing, their raw content backfills the context.
type Service struct {
	searcher  Searcher
	generator TextGenerator
	docs      storage.DocumentStore
	cfg       Config
}

func NewService(searcher Searcher, generator TextGenerator, docs storage.DocumentStore, cfg Config) *Service {
	if cfg.ContextCharBudget <= 0 {
		cfg.ContextCharBudget = 8000
	}
	return &Service{
		searcher:  searcher,
		generator: generator,
		docs:      docs,
		cfg:       cfg,
	}
}

func (s *Service) Answer(ctx context.Context, req retrieval.Request) (*Answer, error) {
	resp, err := s.searcher.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	contextBlock := resp.Context
	if contextBlock == "" {
		contextBlock, err = s.directContext(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	text, err := s.generator.Generate(ctx, req.Query, contextBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &Answer{
		Text:    text,
		Results: resp.Results,
		Context: contextBlock,
	}, nil
}

// directContext builds a raw-content context from the scope's direct
// strategy documents. Vectors for these documents may simply not exist
// yet; their full text is small enough to feed the generator as-is.
func (s *Service) directContext(ctx context.Context, req retrieval.Request) (string, error) {
	docs, err := s.scopeDocuments(ctx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, doc := range docs {
		if doc.Strategy != models.StrategyDirectLLM || doc.Content == "" {
			continue
		}
		header := fmt.Sprintf("\n=== Source: %s ===\n", doc.Name)
		if b.Len()+len(header) >= s.cfg.ContextCharBudget {
			break
		}
		b.WriteString(header)

		remaining := s.cfg.ContextCharBudget - b.Len()
		content := doc.Content
		if len(content) > remaining {
			content = content[:remaining]
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	if b.Len() == 0 {
		return "", ErrNoContext
	}

	logger.Debug("Using direct document content as context",
		zap.Int("chars", b.Len()),
	)
	return b.String(), nil
}

func (s *Service) scopeDocuments(ctx context.Context, req retrieval.Request) ([]*models.Document, error) {
	if len(req.DocumentIDs) > 0 {
		var docs []*models.Document
		for _, id := range req.DocumentIDs {
			doc, err := s.docs.GetDocument(ctx, id)
			if err != nil {
				logger.Warn("Skipping unavailable document", zap.String("document_id", id), zap.Error(err))
				continue
			}
			docs = append(docs, doc)
		}
		return docs, nil
	}
	return s.docs.ListByCase(ctx, req.CaseID, models.StatusProcessed, models.StatusEnhanced)
}
