package contextcomp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/serani-ai/serani/store"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

type fakeMemory struct {
	matches []*store.MemorySummaryMatch
	err     error
}

func (f *fakeMemory) SearchMemorySummaries(ctx context.Context, search *store.SearchMemorySummary) ([]*store.MemorySummaryMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func turns(contents ...string) []*store.ConversationTurn {
	out := make([]*store.ConversationTurn, 0, len(contents))
	for i, c := range contents {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAssistant
		}
		out = append(out, &store.ConversationTurn{Role: role, Content: c})
	}
	return out
}

func match(content string, score float32, createdTs int64) *store.MemorySummaryMatch {
	return &store.MemorySummaryMatch{
		Summary: &store.MemorySummary{Content: content, CreatedTs: createdTs},
		Score:   score,
	}
}

func TestComposeOrdersSummariesByScore(t *testing.T) {
	memory := &fakeMemory{matches: []*store.MemorySummaryMatch{
		match("low relevance", 0.2, 100),
		match("high relevance", 0.9, 50),
		match("mid relevance", 0.5, 80),
	}}
	c := NewComposer(&fakeEmbedder{vector: []float32{0.1}}, memory, 5, 4000)

	block := c.Compose(context.Background(), 1, "query", turns("hi", "hello"))
	require.Len(t, block.Summaries, 3)
	require.Equal(t, "high relevance", block.Summaries[0].Content)
	require.Equal(t, "mid relevance", block.Summaries[1].Content)
	require.Equal(t, "low relevance", block.Summaries[2].Content)
}

func TestComposeTieBreaksNewerFirst(t *testing.T) {
	memory := &fakeMemory{matches: []*store.MemorySummaryMatch{
		match("older", 0.5, 100),
		match("newer", 0.5, 200),
	}}
	c := NewComposer(&fakeEmbedder{vector: []float32{0.1}}, memory, 5, 4000)

	block := c.Compose(context.Background(), 1, "query", nil)
	require.Len(t, block.Summaries, 2)
	require.Equal(t, "newer", block.Summaries[0].Content)
}

func TestComposeBudgetDropsLowestSimilarityFirst(t *testing.T) {
	long := strings.Repeat("x", 120)
	memory := &fakeMemory{matches: []*store.MemorySummaryMatch{
		match("keep "+long, 0.9, 1),
		match("drop "+long, 0.1, 2),
	}}
	recent := turns("short user turn", "short assistant turn")
	c := NewComposer(&fakeEmbedder{vector: []float32{0.1}}, memory, 5, 260)

	block := c.Compose(context.Background(), 1, "query", recent)

	// Recent turns survive; the low-scoring summary is dropped.
	require.Len(t, block.RecentTurns, 2)
	require.Len(t, block.Summaries, 1)
	require.Contains(t, block.Summaries[0].Content, "keep")
	require.LessOrEqual(t, len(block.Render()), 260)
}

func TestComposeNeverDropsRecentTurns(t *testing.T) {
	recent := turns(strings.Repeat("a", 200), strings.Repeat("b", 200))
	memory := &fakeMemory{matches: []*store.MemorySummaryMatch{
		match("summary", 0.9, 1),
	}}
	c := NewComposer(&fakeEmbedder{vector: []float32{0.1}}, memory, 5, 100)

	block := c.Compose(context.Background(), 1, "query", recent)
	require.Len(t, block.RecentTurns, 2)
	require.Empty(t, block.Summaries)
}

func TestComposeDegradesOnEmbeddingFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	c := NewComposer(embedder, &fakeMemory{}, 5, 4000)

	block := c.Compose(context.Background(), 1, "query", turns("hi"))
	require.Len(t, block.RecentTurns, 1)
	require.Empty(t, block.Summaries)
	require.Equal(t, 2, embedder.calls) // one retry
}

func TestComposeDegradesOnSearchFailure(t *testing.T) {
	c := NewComposer(&fakeEmbedder{vector: []float32{0.1}}, &fakeMemory{err: errors.New("db down")}, 5, 4000)

	block := c.Compose(context.Background(), 1, "query", turns("hi"))
	require.Empty(t, block.Summaries)
	require.Len(t, block.RecentTurns, 1)
}

func TestRenderSections(t *testing.T) {
	block := &Block{
		RecentTurns: turns("book dentist", "sure, when?"),
		Summaries:   []ScoredSummary{{Content: "user prefers mornings", Score: 0.8}},
	}
	rendered := block.Render()
	require.Contains(t, rendered, "## Relevant Past Context:")
	require.Contains(t, rendered, "- user prefers mornings")
	require.Contains(t, rendered, "## Recent Conversation:")
	require.Contains(t, rendered, "user: book dentist")
	require.Contains(t, rendered, "assistant: sure, when?")
}

func TestTriggerFiresEveryN(t *testing.T) {
	tr := NewTrigger(3)
	require.False(t, tr.Observe())
	require.False(t, tr.Observe())
	require.True(t, tr.Observe())
	require.False(t, tr.Observe())
	require.False(t, tr.Observe())
	require.True(t, tr.Observe())
}

func TestTriggerDisabled(t *testing.T) {
	tr := NewTrigger(0)
	for i := 0; i < 10; i++ {
		require.False(t, tr.Observe())
	}
}
