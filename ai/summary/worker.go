package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"

	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/store"
)

// MemoryStore is the slice of the store the worker needs.
type MemoryStore interface {
	RecentConversationTurns(ctx context.Context, userID int32, limit int) ([]*store.ConversationTurn, error)
	UpsertMemorySummary(ctx context.Context, upsert *store.MemorySummary) (*store.MemorySummary, error)
}

// PassRecorder consumes pass and retry counts. *metrics.PrometheusExporter
// satisfies it.
type PassRecorder interface {
	RecordSummaryPass(success bool)
	RecordSummaryRetry()
}

// Worker runs summarization passes in the background so the chat path
// never waits on them. Jobs are per-user; a pass summarizes the most
// recent window of turns, embeds it and writes a memory summary.
type Worker struct {
	summarizer Summarizer
	embedder   llm.EmbeddingService
	memory     MemoryStore
	recorder   PassRecorder

	windowSize int
	retryLimit int
	jobs       chan int32
}

// NewWorker creates a worker. windowSize is the number of recent turns
// summarized per pass; retryLimit bounds attempts per job. recorder may
// be nil.
func NewWorker(summarizer Summarizer, embedder llm.EmbeddingService, memory MemoryStore, recorder PassRecorder, windowSize, retryLimit int) *Worker {
	if windowSize <= 0 {
		windowSize = 8
	}
	if retryLimit <= 0 {
		retryLimit = 3
	}
	return &Worker{
		summarizer: summarizer,
		embedder:   embedder,
		memory:     memory,
		recorder:   recorder,
		windowSize: windowSize,
		retryLimit: retryLimit,
		jobs:       make(chan int32, 64),
	}
}

// Enqueue schedules a summarization pass for the user. It never blocks;
// if the queue is full the pass is skipped and the next trigger retries.
func (w *Worker) Enqueue(userID int32) {
	select {
	case w.jobs <- userID:
	default:
		slog.Warn("summary: queue full, skipping pass", "user_id", userID)
	}
}

// Run consumes jobs until ctx is cancelled. At most two passes run
// concurrently; LLM and embedding calls dominate the cost.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case userID := <-w.jobs:
			g.Go(func() error {
				w.processWithRetry(ctx, userID)
				return nil
			})
		}
	}
}

func (w *Worker) processWithRetry(ctx context.Context, userID int32) {
	backoff := time.Second
	for attempt := 1; attempt <= w.retryLimit; attempt++ {
		err := w.process(ctx, userID)
		if err == nil {
			w.recordPass(true)
			return
		}
		if attempt == w.retryLimit {
			slog.Error("summary: pass abandoned", "user_id", userID, "attempts", attempt, "error", err)
			w.recordPass(false)
			return
		}
		slog.Warn("summary: pass failed, retrying", "user_id", userID, "attempt", attempt, "error", err)
		if w.recorder != nil {
			w.recorder.RecordSummaryRetry()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (w *Worker) recordPass(success bool) {
	if w.recorder != nil {
		w.recorder.RecordSummaryPass(success)
	}
}

func (w *Worker) process(ctx context.Context, userID int32) error {
	turns, err := w.memory.RecentConversationTurns(ctx, userID, w.windowSize)
	if err != nil {
		return fmt.Errorf("load window: %w", err)
	}
	if len(turns) == 0 {
		return nil
	}

	result, err := w.summarizer.Summarize(ctx, turns)
	if err != nil {
		// Summaries are best-effort derived data: keep memory accruing
		// through provider outages with the extractive fallback.
		result = FallbackSummarize(turns)
	}

	vector, err := w.embedder.Embed(ctx, result.Summary)
	if err != nil {
		return fmt.Errorf("embed summary: %w", err)
	}

	saved, err := w.memory.UpsertMemorySummary(ctx, &store.MemorySummary{
		UID:       fmt.Sprintf("conv_%d_%s", userID, shortuuid.New()),
		UserID:    userID,
		Content:   result.Summary,
		Embedding: vector,
		CreatedTs: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}

	slog.Debug("summary: pass complete", "user_id", userID, "uid", saved.UID, "source", result.Source)
	return nil
}
