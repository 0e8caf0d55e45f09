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
	"github.com/caserag/ragengine/pkg/retry"
)

const systemPrompt = `You answer questions about a set of case documents.
Ground every statement in the provided context. If the context does not
contain the answer, say so instead of guessing. Cite the source document
name when it is available.`

// Generator implements generation.TextGenerator against an
// OpenAI-compatible chat completion API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryCfg    retry.Config
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

func NewGenerator(cfg Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cb := circuitbreaker.New("generation", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryCfg := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		RetryIf: embedding.Retryable,
		Logger:  logger.GetLogger(),
	}

	logger.Info("Text generator initialized", zap.String("model", cfg.Model))

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		cb:          cb,
		retryCfg:    retryCfg,
	}
}

func (g *Generator) Generate(ctx context.Context, query, contextBlock string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, query)

	var answer string
	err := g.cb.Execute(ctx, func() error {
		return retry.Do(ctx, g.retryCfg, func() error {
			resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       g.model,
				Temperature: g.temperature,
				MaxTokens:   g.maxTokens,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: userPrompt},
				},
			})
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("Completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			answer = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}
