package mock

import "agentic-reconciliation-backend/internal/ai"

// Provider is a test double for ai.Provider.
type Provider struct {
	generator *Generator
	embedder  *Embedder
}

// NewProvider aggregates the given doubles. A nil generator makes
// Generator() return nil, as a provider without a generation model does.
func NewProvider(generator *Generator, embedder *Embedder) *Provider {
	if embedder == nil {
		embedder = NewEmbedder()
	}
	return &Provider{generator: generator, embedder: embedder}
}

// Generator returns the mock generator or nil.
func (p *Provider) Generator() ai.Generator {
	if p.generator == nil {
		return nil
	}
	return p.generator
}

// Embedder returns the mock embedder.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close is a no-op for mock provider.
func (p *Provider) Close() error {
	return nil
}
