package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/voxtype/voxtype/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()

	stereo := samplesToBytes([]int16{100, 200, 300, 500})
	mono := audio.StereoToMono(stereo)

	got := bytesToSamples(mono)
	want := []int16{150, 400}
	if len(got) != len(want) {
		t.Fatalf("samples = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono_NoOverflow(t *testing.T) {
	t.Parallel()

	stereo := samplesToBytes([]int16{32767, 32767, -32768, -32768})
	got := bytesToSamples(audio.StereoToMono(stereo))

	if got[0] != 32767 {
		t.Fatalf("max sample averaged to %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Fatalf("min sample averaged to %d, want -32768", got[1])
	}
}

func TestResampleMono16_SameRate(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes([]int16{1, 2, 3})
	if got := audio.ResampleMono16(pcm, 16000, 16000); &got[0] != &pcm[0] {
		t.Fatal("same-rate resample should return input unchanged")
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	t.Parallel()

	// 8 samples at 32 kHz -> 4 samples at 16 kHz.
	pcm := samplesToBytes([]int16{0, 100, 200, 300, 400, 500, 600, 700})
	out := audio.ResampleMono16(pcm, 32000, 16000)

	got := bytesToSamples(out)
	if len(got) != 4 {
		t.Fatalf("samples = %d, want 4", len(got))
	}
	// Every second source sample survives with linear interpolation on exact
	// positions.
	want := []int16{0, 200, 400, 600}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResampleMono16_Upsample(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes([]int16{0, 100})
	out := audio.ResampleMono16(pcm, 8000, 16000)

	got := bytesToSamples(out)
	if len(got) != 4 {
		t.Fatalf("samples = %d, want 4", len(got))
	}
	if got[0] != 0 || got[1] != 50 {
		t.Fatalf("interpolated start = %v, want [0 50 …]", got[:2])
	}
}

func TestResampleMono16_ZeroRate(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes([]int16{1, 2})
	if got := audio.ResampleMono16(pcm, 0, 16000); len(got) != len(pcm) {
		t.Fatal("zero source rate should return input unchanged")
	}
}

func TestResampleStereo16_Downsample(t *testing.T) {
	t.Parallel()

	// 4 stereo frames at 32 kHz -> 2 frames at 16 kHz.
	pcm := samplesToBytes([]int16{0, 10, 100, 110, 200, 210, 300, 310})
	out := audio.ResampleStereo16(pcm, 32000, 16000)

	got := bytesToSamples(out)
	want := []int16{0, 10, 200, 210}
	if len(got) != len(want) {
		t.Fatalf("samples = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNewConverter_RejectsBadFormats(t *testing.T) {
	t.Parallel()

	if _, err := audio.NewConverter(0, 1, 16000); err == nil {
		t.Fatal("zero source rate accepted")
	}
	if _, err := audio.NewConverter(48000, 3, 16000); err == nil {
		t.Fatal("3 channels accepted")
	}
}

func TestConverter_NoopPassesInputThrough(t *testing.T) {
	t.Parallel()

	c, err := audio.NewConverter(16000, 1, 16000)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	if !c.Noop() {
		t.Fatal("matching format should be a noop")
	}

	pcm := samplesToBytes([]int16{1, 2, 3})
	out, err := c.Convert(pcm)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if &out[0] != &pcm[0] {
		t.Fatal("noop conversion should return input unchanged")
	}
}

func TestConverter_StereoDownsampleToEngineFormat(t *testing.T) {
	t.Parallel()

	c, err := audio.NewConverter(32000, 2, 16000)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}

	// 4 stereo frames at 32 kHz -> 2 mono samples at 16 kHz.
	pcm := samplesToBytes([]int16{0, 20, 100, 120, 200, 220, 300, 320})
	out, err := c.Convert(pcm)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	got := bytesToSamples(out)
	want := []int16{10, 210}
	if len(got) != len(want) {
		t.Fatalf("samples = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestConverter_RejectsMisalignedChunk(t *testing.T) {
	t.Parallel()

	c, err := audio.NewConverter(48000, 2, 16000)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	if _, err := c.Convert(make([]byte, 6)); err == nil {
		t.Fatal("6 bytes of stereo int16 should be rejected")
	}
}
