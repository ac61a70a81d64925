// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxtype/voxtype/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// Provider is a configurable [embeddings.Provider] for tests. The zero value
// returns empty vectors; set Vector or Err to script behavior. All fields
// must be set before first use; call records are guarded by an internal
// mutex.
type Provider struct {
	mu sync.Mutex

	// Vector is returned by Embed and, replicated per input, by EmbedBatch.
	Vector []float32

	// Err, when non-nil, is returned by Embed and EmbedBatch.
	Err error

	// Dims is returned by Dimensions. Zero falls back to len(Vector).
	Dims int

	// Model is returned by ModelID. Empty defaults to "mock-embed".
	Model string

	// Texts records every string submitted across Embed and EmbedBatch.
	Texts []string
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.Texts = append(p.Texts, text)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	return append([]float32(nil), p.Vector...), nil
}

// EmbedBatch implements [embeddings.Provider].
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.Texts = append(p.Texts, texts...)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = append([]float32(nil), p.Vector...)
	}
	return out, nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int {
	if p.Dims != 0 {
		return p.Dims
	}
	return len(p.Vector)
}

// ModelID implements [embeddings.Provider].
func (p *Provider) ModelID() string {
	if p.Model != "" {
		return p.Model
	}
	return "mock-embed"
}

// CallCount returns the number of texts submitted so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Texts)
}
