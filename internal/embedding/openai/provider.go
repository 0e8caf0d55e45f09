package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/embedding"
	"github.com/caserag/ragengine/pkg/circuitbreaker"
	"github.com/caserag/ragengine/pkg/logger"
)

// Provider implements embedding.Provider against an OpenAI-compatible
// API. A separate query model may be configured for backends that ship
// query-optimized embeddings; otherwise the document model serves both.
type Provider struct {
	client     *openai.Client
	model      string
	queryModel string
	dim        int
	timeout    time.Duration
	cb         *circuitbreaker.CircuitBreaker
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	QueryModel string
	Dimension  int
	TimeoutSec int
}

func NewProvider(cfg Config) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	queryModel := cfg.QueryModel
	if queryModel == "" {
		queryModel = cfg.Model
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 768
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	cb := circuitbreaker.New("embedding", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	logger.Info("Embedding provider initialized",
		zap.String("model", cfg.Model),
		zap.String("query_model", queryModel),
		zap.Int("dimension", dim),
	)

	return &Provider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		queryModel: queryModel,
		dim:        dim,
		timeout:    timeout,
		cb:         cb,
	}
}

func (p *Provider) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, text, p.model)
}

func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, text, p.queryModel)
}

func (p *Provider) Dimension() int {
	return p.dim
}

func (p *Provider) embed(ctx context.Context, text, model string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var vector []float32

	err := p.cb.Execute(ctx, func() error {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("provider returned no embedding data")
		}

		vector = make([]float32, len(resp.Data[0].Embedding))
		copy(vector, resp.Data[0].Embedding)
		return nil
	})
	if err != nil {
		return nil, &embedding.Error{Kind: embedding.Classify(err), Err: err}
	}

	return embedding.Normalize(vector, p.dim), nil
}
