package ai

import "context"

// Generator produces free text from a single prompt.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder generates vector embeddings used for similarity search.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText embeds a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts embeds a batch; the result keeps input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider constructs the generator and embedder from one configuration and
// owns their lifecycle.
type Provider interface {
	// Generator returns nil when no generation model is configured.
	Generator() Generator

	Embedder() Embedder

	Close() error
}
