package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voxtype/voxtype/internal/transcript"
)

// Save implements [transcript.Store]. It inserts u and fills in its ID.
// A zero CreatedAt is replaced with the current time.
func (s *Store) Save(ctx context.Context, u *transcript.Utterance) error {
	const q = `
		INSERT INTO utterances (session_id, text, language, duration_ns, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	err := s.pool.QueryRow(ctx, q,
		u.SessionID,
		u.Text,
		u.Language,
		u.Duration.Nanoseconds(),
		u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("transcript store: save: %w", err)
	}
	return nil
}

// Recent implements [transcript.Store]. It returns up to limit utterances for
// sessionID, newest first. limit <= 0 returns all of them.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]transcript.Utterance, error) {
	q := `
		SELECT id, session_id, text, language, duration_ns, created_at
		FROM   utterances
		WHERE  session_id = $1
		ORDER  BY created_at DESC, id DESC`

	args := []any{sessionID}
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("transcript store: recent: %w", err)
	}
	return collectUtterances(rows)
}

// SearchText performs a PostgreSQL full-text search over the utterance text,
// newest first. sessionID narrows the search when non-empty. The query is
// passed to plainto_tsquery so no operator syntax is required.
func (s *Store) SearchText(ctx context.Context, query, sessionID string, limit int) ([]transcript.Utterance, error) {
	q := `
		SELECT id, session_id, text, language, duration_ns, created_at
		FROM   utterances
		WHERE  to_tsvector('english', text) @@ plainto_tsquery('english', $1)`

	args := []any{query}
	if sessionID != "" {
		args = append(args, sessionID)
		q += fmt.Sprintf("\n  AND  session_id = $%d", len(args))
	}
	q += "\nORDER  BY created_at DESC, id DESC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("transcript store: search text: %w", err)
	}
	return collectUtterances(rows)
}

// collectUtterances scans pgx rows into a slice of Utterance values.
func collectUtterances(rows pgx.Rows) ([]transcript.Utterance, error) {
	utts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcript.Utterance, error) {
		var (
			u          transcript.Utterance
			durationNS int64
		)
		if err := row.Scan(
			&u.ID,
			&u.SessionID,
			&u.Text,
			&u.Language,
			&durationNS,
			&u.CreatedAt,
		); err != nil {
			return transcript.Utterance{}, err
		}
		u.Duration = time.Duration(durationNS)
		return u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcript store: scan rows: %w", err)
	}
	if utts == nil {
		utts = []transcript.Utterance{}
	}
	return utts, nil
}
