package server

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/voxtype/voxtype/pkg/audio"
)

// opusFrameMs is the packet duration dictation clients encode with.
const opusFrameMs = 20

// opusDecoder decodes mono Opus packets into little-endian 16-bit PCM at the
// server's sample rate.
type opusDecoder struct {
	dec       *gopus.Decoder
	frameSize int
}

func newOpusDecoder(sampleRate int) (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &opusDecoder{
		dec:       dec,
		frameSize: sampleRate * opusFrameMs / 1000,
	}, nil
}

func (d *opusDecoder) decode(packet []byte) ([]byte, error) {
	samples, err := d.dec.Decode(packet, d.frameSize, false)
	if err != nil {
		return nil, fmt.Errorf("decode opus packet: %w", err)
	}
	return audio.Int16sToBytes(samples), nil
}
