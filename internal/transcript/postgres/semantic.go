package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/voxtype/voxtype/internal/transcript"
)

// AttachEmbedding stores the embedding vector for a previously saved
// utterance, making it reachable by [Store.SearchSimilar].
func (s *Store) AttachEmbedding(ctx context.Context, id int64, embedding []float32) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE utterances SET embedding = $2 WHERE id = $1`,
		id, pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("transcript store: attach embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transcript store: attach embedding: utterance %d not found", id)
	}
	return nil
}

// SearchSimilar implements [transcript.Searcher]. It returns up to limit
// utterances whose embeddings are closest (cosine distance) to the query
// embedding, most similar first. Utterances without an embedding are skipped.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]transcript.SearchResult, error) {
	const q = `
		SELECT id, session_id, text, language, duration_ns, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM   utterances
		WHERE  embedding IS NOT NULL
		ORDER  BY embedding <=> $1
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("transcript store: search similar: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcript.SearchResult, error) {
		var (
			r          transcript.SearchResult
			durationNS int64
		)
		if err := row.Scan(
			&r.ID,
			&r.SessionID,
			&r.Text,
			&r.Language,
			&durationNS,
			&r.CreatedAt,
			&r.Similarity,
		); err != nil {
			return transcript.SearchResult{}, err
		}
		r.Duration = time.Duration(durationNS)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcript store: scan rows: %w", err)
	}
	if results == nil {
		results = []transcript.SearchResult{}
	}
	return results, nil
}
