package resilience

import (
	"context"

	"github.com/voxtype/voxtype/pkg/provider/stt"
)

// TranscriberFallback implements [stt.Transcriber] with automatic failover
// across multiple transcription backends. Each backend has its own circuit
// breaker, so a down whisper.cpp server stops being probed on every segment
// while a cloud fallback keeps the dictation session alive.
type TranscriberFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates a [TranscriberFallback] with primary as the
// preferred backend.
func NewTranscriberFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *TranscriberFallback {
	return &TranscriberFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional backend, tried after the primary.
func (f *TranscriberFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Backends returns the backend names in trial order.
func (f *TranscriberFallback) Backends() []string {
	return f.group.Names()
}

// Transcribe sends the segment to the first healthy backend.
func (f *TranscriberFallback) Transcribe(ctx context.Context, pcm []byte) (stt.Result, error) {
	res, _, err := Do(f.group, func(t stt.Transcriber) (stt.Result, error) {
		return t.Transcribe(ctx, pcm)
	})
	return res, err
}
