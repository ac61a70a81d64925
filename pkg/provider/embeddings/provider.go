// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// An embeddings provider maps text to dense float32 vectors. Voxtype uses
// them to build the semantic transcript index: every persisted utterance is
// embedded and stored in pgvector, so past dictation can be searched by
// meaning rather than exact words.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors produced by one Provider instance share the dimensionality
// reported by Dimensions. Vectors from different providers or models must
// never be mixed in the same similarity computation.
type Provider interface {
	// Embed computes the embedding vector for one text string. The text is
	// passed to the backend verbatim; any model-specific prompt formatting
	// is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds a slice of texts in a single backend call. The
	// returned slice matches texts in length and order. On error no partial
	// results are returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces.
	Dimensions() int

	// ModelID returns the backend-specific model identifier, for logging
	// and for verifying that stored vectors match the configured model.
	ModelID() string
}
