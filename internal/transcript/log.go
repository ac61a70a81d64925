package transcript

import (
	"strings"
	"sync"
)

// Log accumulates the utterances of one streaming session in memory. It keeps
// at most a configured number of entries, evicting the oldest, and maintains
// the running session transcript with overlap deduplication at segment
// boundaries.
//
// Log is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	limit   int
	entries []Utterance
	text    string
	norm    *Normalizer
}

// NewLog returns a [Log] retaining at most limit utterances (unbounded when
// limit <= 0). norm may be nil, in which case segments are joined with a
// plain space.
func NewLog(limit int, norm *Normalizer) *Log {
	return &Log{
		limit: limit,
		norm:  norm,
	}
}

// Append records u and extends the running transcript with its text.
func (l *Log) Append(u Utterance) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, u)
	if l.limit > 0 && len(l.entries) > l.limit {
		// Copy to a fresh slice so the evicted backing array is not pinned.
		excess := len(l.entries) - l.limit
		kept := make([]Utterance, l.limit)
		copy(kept, l.entries[excess:])
		l.entries = kept
	}

	if l.norm != nil {
		l.text = l.norm.Append(l.text, u.Text)
		return
	}
	if l.text == "" {
		l.text = u.Text
	} else {
		l.text = l.text + " " + u.Text
	}
}

// Recent returns up to n utterances, newest first. n <= 0 returns all
// retained entries.
func (l *Log) Recent(n int) []Utterance {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Utterance, n)
	for i := 0; i < n; i++ {
		out[i] = l.entries[len(l.entries)-1-i]
	}
	return out
}

// Len returns the number of retained utterances.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Text returns the accumulated session transcript.
func (l *Log) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.TrimSpace(l.text)
}

// Reset clears all entries and the accumulated transcript.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.text = ""
}
