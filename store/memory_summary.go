package store

import "context"

// MemorySummary is a short derived summary of a block of past conversation
// together with its embedding vector. Summaries are immutable once stored
// and retrieved only by similarity.
type MemorySummary struct {
	// UID is the document identifier, e.g. "conv_42_Kb7fQ2hT".
	UID       string
	UserID    int32
	Content   string
	Embedding []float32
	CreatedTs int64
}

// SearchMemorySummary is the similarity-search condition for summaries.
type SearchMemorySummary struct {
	UserID    int32
	Embedding []float32
	Limit     int
}

// MemorySummaryMatch is one similarity result, score descending.
type MemorySummaryMatch struct {
	Summary *MemorySummary
	// Score is cosine similarity in [-1, 1]; higher is closer.
	Score float32
}

func (s *Store) UpsertMemorySummary(ctx context.Context, upsert *MemorySummary) (*MemorySummary, error) {
	return s.driver.UpsertMemorySummary(ctx, upsert)
}

func (s *Store) SearchMemorySummaries(ctx context.Context, search *SearchMemorySummary) ([]*MemorySummaryMatch, error) {
	return s.driver.SearchMemorySummaries(ctx, search)
}
