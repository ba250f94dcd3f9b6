package llm

import (
	"context"
	"time"

	"github.com/serani-ai/serani/ai/cache"
)

// cachedEmbedding memoizes Embed results. Retrieval re-embeds the same
// short utterances often; a small cache removes those round trips.
type cachedEmbedding struct {
	inner EmbeddingService
	cache *cache.LRU[string, []float32]
}

// NewCachedEmbedding wraps inner with an LRU keyed by the exact input
// text.
func NewCachedEmbedding(inner EmbeddingService, capacity int, ttl time.Duration) EmbeddingService {
	return &cachedEmbedding{
		inner: inner,
		cache: cache.NewLRU[string, []float32](capacity, ttl),
	}
}

func (s *cachedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := s.cache.Get(text); ok {
		return vector, nil
	}
	vector, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Set(text, vector)
	return vector, nil
}

func (s *cachedEmbedding) Dimensions() int {
	return s.inner.Dimensions()
}
