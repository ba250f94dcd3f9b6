package sqlite

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/serani-ai/serani/store"
)

// Embeddings are stored as JSON arrays and similarity is computed in Go.
// Exact brute-force over one user's summaries is fine at personal-
// assistant scale; pgvector covers anything larger.

func (d *DB) UpsertMemorySummary(ctx context.Context, upsert *store.MemorySummary) (*store.MemorySummary, error) {
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = time.Now().Unix()
	}

	embedding, err := json.Marshal(upsert.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode embedding")
	}

	stmt := `
		INSERT INTO memory_summary (uid, user_id, content, embedding, created_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`
	_, err = d.db.ExecContext(ctx, stmt,
		upsert.UID,
		upsert.UserID,
		upsert.Content,
		string(embedding),
		upsert.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert memory summary")
	}

	return upsert, nil
}

func (d *DB) SearchMemorySummaries(ctx context.Context, search *store.SearchMemorySummary) ([]*store.MemorySummaryMatch, error) {
	query := `
		SELECT uid, user_id, content, embedding, created_ts
		FROM memory_summary
		WHERE user_id = ?
	`
	rows, err := d.db.QueryContext(ctx, query, search.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load memory summaries")
	}
	defer rows.Close()

	matches := []*store.MemorySummaryMatch{}
	for rows.Next() {
		var summary store.MemorySummary
		var embedding string
		if err := rows.Scan(&summary.UID, &summary.UserID, &summary.Content, &embedding, &summary.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan memory summary")
		}
		if err := json.Unmarshal([]byte(embedding), &summary.Embedding); err != nil {
			return nil, errors.Wrapf(err, "failed to decode embedding for summary %s", summary.UID)
		}
		matches = append(matches, &store.MemorySummaryMatch{
			Summary: &summary,
			Score:   cosineSimilarity(search.Embedding, summary.Embedding),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if search.Limit > 0 && len(matches) > search.Limit {
		matches = matches[:search.Limit]
	}

	return matches, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
