// Package energy implements [vad.Classifier] with RMS energy thresholds.
//
// Two modes are available:
//
//   - whole-chunk: the RMS of the entire chunk is compared against the
//     silence threshold. Cheap and adequate for short capture chunks.
//   - frame-ratio: the chunk is split into fixed-duration frames, each frame
//     is classified individually, and the chunk counts as speech when the
//     fraction of speech frames exceeds a configurable ratio. This resists
//     a single loud transient (a keyboard click) flipping a silent chunk.
//
// The classifier holds no per-stream state, so one instance may serve any
// number of concurrent streams.
package energy

import (
	"github.com/voxtype/voxtype/pkg/audio"
	"github.com/voxtype/voxtype/pkg/provider/vad"
)

const (
	// defaultRMSThreshold is the RMS level (in 16-bit PCM units, max 32767)
	// below which audio is considered silent. 300 corresponds to near-silence
	// on typical consumer microphones.
	defaultRMSThreshold = 300.0

	// defaultFrameMs is the frame duration used in frame-ratio mode.
	defaultFrameMs = 30

	// defaultSpeechRatio is the minimum fraction of speech frames for a chunk
	// to count as speech in frame-ratio mode.
	defaultSpeechRatio = 0.25
)

// Compile-time assertion that Classifier satisfies vad.Classifier.
var _ vad.Classifier = (*Classifier)(nil)

// Option is a functional option for configuring a Classifier.
type Option func(*Classifier)

// WithThreshold sets the RMS silence threshold in 16-bit PCM units.
// Defaults to 300.
func WithThreshold(rms float64) Option {
	return func(c *Classifier) { c.threshold = rms }
}

// WithFrameRatio enables frame-ratio mode: the chunk is split into frames of
// frameMs milliseconds and counts as speech when at least speechRatio of the
// frames exceed the RMS threshold.
func WithFrameRatio(frameMs int, speechRatio float64) Option {
	return func(c *Classifier) {
		c.frameRatio = true
		if frameMs > 0 {
			c.frameMs = frameMs
		}
		if speechRatio > 0 {
			c.speechRatio = speechRatio
		}
	}
}

// Classifier is an energy-based silence classifier. It is read-only after
// construction and safe for concurrent use.
type Classifier struct {
	sampleRate  int
	threshold   float64
	frameRatio  bool
	frameMs     int
	speechRatio float64
}

// New returns a whole-chunk RMS classifier for mono PCM at the given sample
// rate. Options may switch it to frame-ratio mode or adjust the threshold.
func New(sampleRate int, opts ...Option) *Classifier {
	c := &Classifier{
		sampleRate:  sampleRate,
		threshold:   defaultRMSThreshold,
		frameMs:     defaultFrameMs,
		speechRatio: defaultSpeechRatio,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsSilent reports whether chunk contains no speech. Empty chunks are silent.
// IsSilent never returns an error; the error return exists to satisfy
// [vad.Classifier].
func (c *Classifier) IsSilent(chunk []byte) (bool, error) {
	if len(chunk) < audio.BytesPerSample {
		return true, nil
	}
	if !c.frameRatio {
		return audio.RMS(chunk) < c.threshold, nil
	}
	return c.isSilentFrames(chunk), nil
}

// isSilentFrames classifies each frame separately and applies the speech
// ratio. A trailing partial frame shorter than half a frame is ignored.
func (c *Classifier) isSilentFrames(chunk []byte) bool {
	frameBytes := c.sampleRate * c.frameMs / 1000 * audio.BytesPerSample
	if frameBytes <= 0 || len(chunk) < frameBytes {
		return audio.RMS(chunk) < c.threshold
	}

	var speech, total int
	for off := 0; off+frameBytes/2 <= len(chunk); off += frameBytes {
		end := off + frameBytes
		if end > len(chunk) {
			end = len(chunk)
		}
		total++
		if audio.RMS(chunk[off:end]) >= c.threshold {
			speech++
		}
	}
	if total == 0 {
		return true
	}
	return float64(speech)/float64(total) < c.speechRatio
}
