package energy_test

import (
	"math"
	"testing"

	"github.com/voxtype/voxtype/pkg/audio"
	"github.com/voxtype/voxtype/pkg/provider/vad/energy"
)

// sinePCM generates a 440 Hz sine wave of the given amplitude with `samples`
// 16-bit mono samples at 16 kHz.
func sinePCM(samples int, amplitude float64) []byte {
	out := make([]int16, samples)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return audio.Int16sToBytes(out)
}

func TestIsSilent_ZeroBuffer_Silent(t *testing.T) {
	c := energy.New(16000)
	silent, err := c.IsSilent(make([]byte, 640))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !silent {
		t.Error("zero buffer classified as speech")
	}
}

func TestIsSilent_LoudSine_Speech(t *testing.T) {
	c := energy.New(16000)
	silent, err := c.IsSilent(sinePCM(1600, 10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if silent {
		t.Error("loud sine classified as silent")
	}
}

func TestIsSilent_QuietSine_BelowThreshold_Silent(t *testing.T) {
	c := energy.New(16000, energy.WithThreshold(500))
	// RMS of amplitude-100 sine ≈ 71, below threshold 500.
	silent, _ := c.IsSilent(sinePCM(1600, 100))
	if !silent {
		t.Error("quiet sine classified as speech")
	}
}

func TestIsSilent_EmptyChunk_Silent(t *testing.T) {
	c := energy.New(16000)
	silent, _ := c.IsSilent(nil)
	if !silent {
		t.Error("empty chunk classified as speech")
	}
}

func TestIsSilent_FrameRatio_TransientIgnored(t *testing.T) {
	c := energy.New(16000, energy.WithFrameRatio(30, 0.25))

	// 10 frames of 30 ms: one loud frame among nine silent ones → 10 % speech
	// frames, below the 25 % ratio, so the chunk is silent overall.
	frame := 16000 * 30 / 1000 // samples per frame
	chunk := make([]byte, 0, frame*10*2)
	chunk = append(chunk, sinePCM(frame, 10000)...)
	chunk = append(chunk, make([]byte, frame*9*2)...)

	silent, _ := c.IsSilent(chunk)
	if !silent {
		t.Error("single loud transient flipped chunk to speech")
	}
}

func TestIsSilent_FrameRatio_MostlySpeech_Speech(t *testing.T) {
	c := energy.New(16000, energy.WithFrameRatio(30, 0.25))

	frame := 16000 * 30 / 1000
	chunk := make([]byte, 0, frame*10*2)
	chunk = append(chunk, sinePCM(frame*6, 10000)...)
	chunk = append(chunk, make([]byte, frame*4*2)...)

	silent, _ := c.IsSilent(chunk)
	if silent {
		t.Error("mostly-speech chunk classified as silent")
	}
}

func TestIsSilent_FrameRatio_ChunkShorterThanFrame_FallsBack(t *testing.T) {
	c := energy.New(16000, energy.WithFrameRatio(30, 0.25))
	silent, _ := c.IsSilent(sinePCM(10, 10000))
	if silent {
		t.Error("short loud chunk classified as silent")
	}
}
