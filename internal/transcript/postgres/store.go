// Package postgres persists transcribed utterances in PostgreSQL.
//
// One table holds the utterance text and metadata together with an optional
// pgvector embedding, so recency queries, full-text search, and semantic
// similarity search all run against the same rows. The pgvector extension
// must be available in the target database; [Migrate] installs it via
// CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Save(ctx, &u)
//	recent, _ := store.Recent(ctx, sessionID, 20)
//	similar, _ := store.SearchSimilar(ctx, queryEmbedding, 5)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/voxtype/voxtype/internal/transcript"
)

var (
	_ transcript.Store    = (*Store)(nil)
	_ transcript.Searcher = (*Store)(nil)
)

// Store is a PostgreSQL-backed utterance store built on a single
// [pgxpool.Pool]. All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the PostgreSQL database at dsn, registers pgvector types on
// every connection, and runs [Migrate].
//
// embeddingDims must match the output dimension of the embedding model used
// for [Store.AttachEmbedding] (e.g., 1536 for OpenAI text-embedding-3-small).
// Changing it after the first migration requires a manual schema change.
func New(ctx context.Context, dsn string, embeddingDims int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so vector columns can
	// be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("transcript store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDims); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping verifies database connectivity, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
