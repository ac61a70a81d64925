package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/voxtype/voxtype/pkg/audio"
)

func TestEncodeWAV_HeaderFields(t *testing.T) {
	pcm := make([]byte, 320)
	wav := audio.EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) {
		t.Errorf("missing RIFF magic, got %q", wav[0:4])
	}
	if !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Errorf("missing WAVE type, got %q", wav[8:12])
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if sz := binary.LittleEndian.Uint32(wav[40:44]); sz != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", sz, len(pcm))
	}
}

func TestEncodeWAV_PayloadCopied(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := audio.EncodeWAV(pcm, 16000, 1)
	if !bytes.Equal(wav[44:], pcm) {
		t.Errorf("payload = %v, want %v", wav[44:], pcm)
	}
}

func TestEncodeWAV_EmptyPCM(t *testing.T) {
	wav := audio.EncodeWAV(nil, 16000, 1)
	if len(wav) != 44 {
		t.Errorf("empty wav length = %d, want 44", len(wav))
	}
}
