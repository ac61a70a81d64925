// Package vad defines the Classifier interface for speech/silence detection
// backends.
//
// A classifier is a stateless-per-call predicate over a raw PCM chunk. It may
// be backed by a simple energy threshold, a frame-ratio detector, or an
// external model; the segmentation engine only depends on the IsSilent
// capability, never on how the detector is built or loaded.
//
// Classification is synchronous: IsSilent returns immediately, making it
// suitable for the low-latency worker loop that gates what audio reaches
// the transcriber.
//
// Implementations must be safe for concurrent use.
package vad

// Classifier decides whether a chunk of raw little-endian 16-bit mono PCM
// audio contains speech.
type Classifier interface {
	// IsSilent reports whether chunk contains no speech. Chunk sizes are
	// arbitrary; implementations must tolerate any length, including empty.
	//
	// A non-nil error means the classifier could not analyse the chunk.
	// Callers should fail open and treat the chunk as speech, since
	// dropping audio is worse than over-buffering.
	IsSilent(chunk []byte) (bool, error)
}
