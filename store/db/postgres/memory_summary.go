package postgres

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/serani-ai/serani/store"
)

func (d *DB) UpsertMemorySummary(ctx context.Context, upsert *store.MemorySummary) (*store.MemorySummary, error) {
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = time.Now().Unix()
	}

	stmt := `
		INSERT INTO memory_summary (uid, user_id, content, embedding, created_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (uid) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`
	vector := pgvector.NewVector(upsert.Embedding)
	_, err := d.db.ExecContext(ctx, stmt,
		upsert.UID,
		upsert.UserID,
		upsert.Content,
		vector,
		upsert.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert memory summary")
	}

	return upsert, nil
}

// SearchMemorySummaries ranks the user's summaries by cosine similarity
// using the pgvector distance operator.
func (d *DB) SearchMemorySummaries(ctx context.Context, search *store.SearchMemorySummary) ([]*store.MemorySummaryMatch, error) {
	limit := search.Limit
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT uid, user_id, content, embedding, created_ts,
			1 - (embedding <=> ` + placeholder(1) + `) AS score
		FROM memory_summary
		WHERE user_id = ` + placeholder(2) + `
		ORDER BY embedding <=> ` + placeholder(1) + `
		LIMIT ` + placeholder(3)

	vector := pgvector.NewVector(search.Embedding)
	rows, err := d.db.QueryContext(ctx, query, vector, search.UserID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search memory summaries")
	}
	defer rows.Close()

	matches := []*store.MemorySummaryMatch{}
	for rows.Next() {
		var summary store.MemorySummary
		var embedding pgvector.Vector
		var score float32
		err := rows.Scan(
			&summary.UID,
			&summary.UserID,
			&summary.Content,
			&embedding,
			&summary.CreatedTs,
			&score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan memory summary")
		}
		summary.Embedding = embedding.Slice()
		matches = append(matches, &store.MemorySummaryMatch{Summary: &summary, Score: score})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return matches, nil
}
