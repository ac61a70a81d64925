// Package transcript post-processes raw speech-to-text output before it is
// logged, persisted, or broadcast to connected clients.
//
// Whisper-style engines emit text with several recurring defects: embedded
// timestamp markers, hallucinated filler phrases on silence, missing sentence
// capitalization, and repeated fragments when adjacent audio segments overlap.
// The [Normalizer] cleans these up. The [Corrector] then nudges misheard
// words towards a user-supplied vocabulary (names, jargon, project terms)
// using phonetic matching. Finally the [Log] accumulates the per-session
// transcript in memory with bounded history.
package transcript

import (
	"context"
	"time"
)

// Utterance is one transcribed speech segment.
type Utterance struct {
	// ID is assigned by the store on save; zero until then.
	ID int64

	// SessionID identifies the streaming session that produced the segment.
	SessionID string

	// Text is the post-processed transcription.
	Text string

	// Language is the ISO 639-1 language code reported by the transcriber,
	// empty when unknown.
	Language string

	// Duration is the audio duration of the segment.
	Duration time.Duration

	// CreatedAt is when the segment was transcribed.
	CreatedAt time.Time
}

// Correction records a single vocabulary substitution made by a [Corrector].
type Correction struct {
	// Original is the word (or phrase) as transcribed.
	Original string

	// Corrected is the vocabulary term that replaced it.
	Corrected string

	// Confidence is the similarity score that justified the substitution,
	// in (0.0, 1.0].
	Confidence float64
}

// Store persists utterances beyond the in-memory [Log].
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists u and fills in its ID.
	Save(ctx context.Context, u *Utterance) error

	// Recent returns up to limit utterances for the session, newest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]Utterance, error)

	// Close releases the underlying resources.
	Close()
}

// SearchResult pairs an utterance with its similarity to a search query.
type SearchResult struct {
	Utterance

	// Similarity is the cosine similarity between the query embedding and
	// the utterance embedding, in [0.0, 1.0].
	Similarity float64
}

// Searcher finds utterances semantically similar to a query embedding.
// Stores that maintain a vector index implement it alongside [Store].
type Searcher interface {
	// SearchSimilar returns up to limit utterances ranked by similarity to
	// the query embedding, most similar first.
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error)
}
