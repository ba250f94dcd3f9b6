package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by the placeholder services used when no
// provider is configured. Callers treat it like any provider outage and
// fall back.
var ErrUnavailable = errors.New("llm: no provider configured")

type unavailable struct{}

// NewUnavailable returns a Service that always fails. It lets the rest of
// the stack run its degradation paths instead of nil-checking a service.
func NewUnavailable() Service {
	return unavailable{}
}

func (unavailable) Chat(ctx context.Context, messages []Message) (string, *CallStats, error) {
	return "", nil, ErrUnavailable
}

type unavailableEmbedding struct{}

// NewUnavailableEmbedding returns an EmbeddingService that always fails.
func NewUnavailableEmbedding() EmbeddingService {
	return unavailableEmbedding{}
}

func (unavailableEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrUnavailable
}

func (unavailableEmbedding) Dimensions() int { return 0 }
