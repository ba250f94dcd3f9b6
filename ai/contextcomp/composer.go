// Package contextcomp assembles the bounded context block injected into
// generation prompts: recent conversation turns plus memory summaries
// retrieved by similarity.
package contextcomp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/store"
)

// MemorySearcher is the slice of the store the composer needs.
type MemorySearcher interface {
	SearchMemorySummaries(ctx context.Context, search *store.SearchMemorySummary) ([]*store.MemorySummaryMatch, error)
}

// Composer builds context blocks under a fixed character budget.
type Composer struct {
	embedder    llm.EmbeddingService
	memory      MemorySearcher
	topK        int
	budgetChars int
}

// NewComposer creates a Composer. topK bounds retrieved summaries,
// budgetChars bounds the rendered block.
func NewComposer(embedder llm.EmbeddingService, memory MemorySearcher, topK, budgetChars int) *Composer {
	if topK <= 0 {
		topK = 5
	}
	if budgetChars <= 0 {
		budgetChars = 4000
	}
	return &Composer{
		embedder:    embedder,
		memory:      memory,
		topK:        topK,
		budgetChars: budgetChars,
	}
}

// ScoredSummary is a retrieved summary with its similarity score.
type ScoredSummary struct {
	Content   string
	Score     float32
	CreatedTs int64
}

// Block is the composed context. Recent turns are chronological, newest
// last; summaries are score descending.
type Block struct {
	RecentTurns []*store.ConversationTurn
	Summaries   []ScoredSummary
}

// Compose assembles the block for query. Retrieval failure degrades to a
// recent-turns-only block: memory is an enrichment, never a blocker.
func (c *Composer) Compose(ctx context.Context, userID int32, query string, recentTurns []*store.ConversationTurn) *Block {
	block := &Block{RecentTurns: recentTurns}

	summaries, err := c.retrieve(ctx, userID, query)
	if err != nil {
		slog.Warn("contextcomp: memory retrieval failed, composing without summaries", "error", err)
	} else {
		block.Summaries = summaries
	}

	c.fitBudget(block)
	return block
}

func (c *Composer) retrieve(ctx context.Context, userID int32, query string) ([]ScoredSummary, error) {
	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		// One retry: embedding is an idempotent read.
		vector, err = c.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	matches, err := c.memory.SearchMemorySummaries(ctx, &store.SearchMemorySummary{
		UserID:    userID,
		Embedding: vector,
		Limit:     c.topK,
	})
	if err != nil {
		return nil, fmt.Errorf("search memory summaries: %w", err)
	}

	summaries := make([]ScoredSummary, 0, len(matches))
	for _, m := range matches {
		summaries = append(summaries, ScoredSummary{
			Content:   m.Summary.Content,
			Score:     m.Score,
			CreatedTs: m.Summary.CreatedTs,
		})
	}

	// Score descending, ties broken by newer summary first.
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Score != summaries[j].Score {
			return summaries[i].Score > summaries[j].Score
		}
		return summaries[i].CreatedTs > summaries[j].CreatedTs
	})

	return summaries, nil
}

// fitBudget trims the block to the character budget. Summaries are dropped
// lowest-similarity first; recent turns are never dropped for retrieved
// memory.
func (c *Composer) fitBudget(block *Block) {
	for len(block.Summaries) > 0 && len(block.Render()) > c.budgetChars {
		block.Summaries = block.Summaries[:len(block.Summaries)-1]
	}
}

// Render formats the block for prompt injection.
func (b *Block) Render() string {
	var parts []string

	if len(b.Summaries) > 0 {
		var sb strings.Builder
		sb.WriteString("## Relevant Past Context:")
		for _, s := range b.Summaries {
			sb.WriteString("\n- ")
			sb.WriteString(s.Content)
		}
		parts = append(parts, sb.String())
	}

	if len(b.RecentTurns) > 0 {
		var sb strings.Builder
		sb.WriteString("## Recent Conversation:")
		for _, turn := range b.RecentTurns {
			fmt.Fprintf(&sb, "\n%s: %s", turn.Role, turn.Content)
		}
		parts = append(parts, sb.String())
	}

	return strings.Join(parts, "\n\n")
}
