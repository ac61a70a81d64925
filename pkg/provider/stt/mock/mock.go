// Package mock provides a scriptable stt.Transcriber for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voxtype/voxtype/pkg/provider/stt"
)

// Ensure Transcriber implements the stt.Transcriber interface.
var _ stt.Transcriber = (*Transcriber)(nil)

// Call records a single Transcribe invocation.
type Call struct {
	PCM []byte
}

// Transcriber is a test double for stt.Transcriber. Results are consumed from
// Script in order; once exhausted, Fallback (and Err) apply to every further
// call. Delay, when set, is waited per call and honors context cancellation.
type Transcriber struct {
	mu       sync.Mutex
	script   []stt.Result
	calls    []Call
	Fallback stt.Result
	Err      error
	Delay    time.Duration
}

// New returns an empty mock whose every call yields the zero Result.
func New() *Transcriber {
	return &Transcriber{}
}

// Script queues results to be returned by successive Transcribe calls.
func (t *Transcriber) Script(results ...stt.Result) *Transcriber {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script = append(t.script, results...)
	return t
}

// ScriptText is a convenience wrapper around Script for text-only results.
func (t *Transcriber) ScriptText(texts ...string) *Transcriber {
	results := make([]stt.Result, len(texts))
	for i, txt := range texts {
		results[i] = stt.Result{Text: txt}
	}
	return t.Script(results...)
}

// Transcribe pops the next scripted result, recording the call. The pcm slice
// is copied so later buffer reuse by the caller cannot corrupt the record.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (stt.Result, error) {
	if t.Delay > 0 {
		select {
		case <-time.After(t.Delay):
		case <-ctx.Done():
			return stt.Result{}, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	t.calls = append(t.calls, Call{PCM: cp})

	if t.Err != nil {
		return stt.Result{}, t.Err
	}
	if len(t.script) > 0 {
		res := t.script[0]
		t.script = t.script[1:]
		return res, nil
	}
	return t.Fallback, nil
}

// Calls returns a snapshot of all recorded invocations.
func (t *Transcriber) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

// CallCount returns the number of Transcribe invocations so far.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
