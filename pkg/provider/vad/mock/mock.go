// Package mock provides a scripted test double for [vad.Classifier].
//
// Use Script to queue per-call results, or set Silent for a constant answer:
//
//	c := &mock.Classifier{}
//	c.Script(false, false, true) // speech, speech, silence, then Silent
package mock

import (
	"sync"

	"github.com/voxtype/voxtype/pkg/provider/vad"
)

// Compile-time assertion that Classifier satisfies vad.Classifier.
var _ vad.Classifier = (*Classifier)(nil)

// Call records a single invocation of IsSilent.
type Call struct {
	// Chunk is a copy of the bytes passed to IsSilent.
	Chunk []byte
}

// Classifier is a mock implementation of vad.Classifier. The zero value
// classifies everything as speech.
type Classifier struct {
	mu sync.Mutex

	// Silent is the result returned once the script is exhausted.
	Silent bool

	// Err, if non-nil, is returned by every IsSilent call.
	Err error

	// Calls records every invocation in order.
	Calls []Call

	script []bool
}

// Script queues per-call results, consumed in order. After the script runs
// out, IsSilent returns Silent.
func (c *Classifier) Script(results ...bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, results...)
}

// IsSilent records the call and returns the next scripted result (or Silent),
// along with Err.
func (c *Classifier) IsSilent(chunk []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	c.Calls = append(c.Calls, Call{Chunk: cp})

	result := c.Silent
	if len(c.script) > 0 {
		result = c.script[0]
		c.script = c.script[1:]
	}
	return result, c.Err
}

// CallCount returns the number of IsSilent invocations so far.
func (c *Classifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
