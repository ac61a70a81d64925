// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A transcriber maps a completed utterance (raw little-endian 16-bit mono
// PCM bytes) to a structured [Result]. Transcription is batch rather than
// streaming: the segmentation engine accumulates a full utterance and hands
// it over in a single call. Backends may be a local whisper.cpp server, the
// in-process whisper.cpp bindings, or a cloud API.
//
// Implementations must be safe for concurrent use, although the segmentation
// engine guarantees at most one in-flight Transcribe call per engine.
package stt

import (
	"context"
	"time"
)

// Result is a completed transcription of one utterance.
type Result struct {
	// Text is the transcribed speech content. May be empty when the audio
	// contained no recognisable speech.
	Text string

	// Language is the BCP-47 language tag detected or configured for the
	// utterance (e.g., "en", "de"). May be empty if the backend does not
	// report it.
	Language string

	// Segments holds per-phrase timing detail when the backend provides it.
	// May be nil.
	Segments []Segment
}

// Segment is a timed phrase within a transcription result.
type Segment struct {
	// Start is the phrase onset relative to the beginning of the utterance.
	Start time.Duration

	// End is the phrase end relative to the beginning of the utterance.
	End time.Duration

	// Text is the phrase content.
	Text string
}

// Transcriber is the abstraction over any batch speech-to-text backend.
type Transcriber interface {
	// Transcribe converts pcm, raw little-endian 16-bit mono PCM at the
	// sample rate agreed at construction time, into a Result. The engine
	// passes exactly the accumulated utterance bytes, no padding or header.
	//
	// Transcribe may be slow; it must respect ctx cancellation. A non-nil
	// error means this utterance is lost, never that the backend is unusable
	// for subsequent calls.
	Transcribe(ctx context.Context, pcm []byte) (Result, error)
}
