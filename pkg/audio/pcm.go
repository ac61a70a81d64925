// Package audio provides PCM byte/time arithmetic and WAV container helpers
// shared by the capture-facing and transcription-facing parts of voxtype.
//
// All audio in the pipeline is 16-bit signed little-endian PCM. Chunks are
// plain byte slices; sample rate and channel count travel alongside them as
// configuration rather than per-chunk metadata.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample is fixed at 2 for 16-bit PCM.
const BytesPerSample = 2

// BytesPerSecond returns the number of PCM bytes per second of audio at the
// given sample rate and channel count.
func BytesPerSecond(sampleRate, channels int) int {
	return sampleRate * channels * BytesPerSample
}

// DurationToBytes converts an audio duration to a PCM byte count, rounded
// down to a whole sample boundary. Returns 0 for non-positive inputs.
func DurationToBytes(d time.Duration, sampleRate, channels int) int {
	if d <= 0 || sampleRate <= 0 || channels <= 0 {
		return 0
	}
	n := int(d.Seconds() * float64(BytesPerSecond(sampleRate, channels)))
	return n - n%(channels*BytesPerSample)
}

// BytesToDuration converts a PCM byte count to the audio duration it
// represents. Returns 0 for non-positive inputs.
func BytesToDuration(n, sampleRate, channels int) time.Duration {
	if n <= 0 || sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(BytesPerSecond(sampleRate, channels)) * float64(time.Second))
}

// Int16sToBytes converts int16 PCM samples to little-endian bytes.
func Int16sToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16s converts little-endian PCM bytes to int16 samples. A trailing
// odd byte is ignored.
func BytesToInt16s(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return out
}

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer, expressed in PCM sample units (0–32767). Returns 0 for buffers
// shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
