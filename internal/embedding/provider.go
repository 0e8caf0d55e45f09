package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	openai "github.com/sashabaranov/go-openai"
)

// Provider turns text into fixed-dimension vectors. Document and query
// embeddings are not interchangeable: providers may optimize them
// differently, and they live in separate cache namespaces.
type Provider interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Kind classifies provider failures; the pipeline's retry and fallback
// behavior depends on the distinction.
type Kind int

const (
	KindOther Kind = iota
	KindRateLimit
	KindAuth
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "auth"
	case KindConnection:
		return "connection"
	default:
		return "other"
	}
}

// Error wraps a provider failure with its kind so callers can branch on
// classification without knowing the backend.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding provider error (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps an arbitrary error onto the provider error taxonomy.
// Already-classified errors keep their kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return KindRateLimit
		case 401, 403:
			return KindAuth
		}
		return KindOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnection
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindConnection
	}

	return KindOther
}

// Retryable reports whether a failure is typically batch-wide and
// transient: worth retrying the whole task with backoff.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindRateLimit, KindConnection:
		return true
	}
	return false
}

// Normalize pads a vector with zeros or truncates it to dim so every
// stored embedding has the configured dimension.
func Normalize(vector []float32, dim int) []float32 {
	if len(vector) == dim {
		return vector
	}
	out := make([]float32, dim)
	copy(out, vector)
	return out
}
