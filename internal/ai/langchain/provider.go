// Package langchain implements the ai interfaces on top of langchaingo
// clients. Both OpenAI-compatible servers and Google Gemini are supported.
package langchain

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"agentic-reconciliation-backend/internal/ai"
)

// Provider implements ai.Provider.
type Provider struct {
	config    *ai.Config
	generator *Generator
	embedder  *Embedder
	logger    *slog.Logger
}

// NewProvider validates config and builds the configured clients.
//
// Returns ai.Provider (not *Provider) so callers stay decoupled from the
// langchaingo types.
func NewProvider(ctx context.Context, config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "llm-provider", "provider", config.Provider)

	embedClient, err := newEmbeddingClient(ctx, config)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(embedClient, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config: config,
		embedder: &Embedder{
			embedder: embedder,
			logger:   slog.Default().With("component", "embedder"),
		},
		logger: logger,
	}

	if config.GenerationEnabled() {
		model, err := newChatModel(ctx, config)
		if err != nil {
			return nil, err
		}
		p.generator = &Generator{
			model:       model,
			temperature: config.Temperature,
			logger:      slog.Default().With("component", "generator", "model", config.Model),
		}
	} else {
		logger.Warn("no generation model configured, generative fallback disabled")
	}

	return p, nil
}

// Generator returns the text generator, or nil if generation is disabled.
func (p *Provider) Generator() ai.Generator {
	if p.generator == nil {
		return nil
	}
	return p.generator
}

// Embedder returns the embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close is a no-op; the langchaingo HTTP clients hold no resources.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}

func newChatModel(ctx context.Context, config *ai.Config) (llms.Model, error) {
	switch config.Provider {
	case ai.ProviderGoogle:
		return googleai.New(ctx,
			googleai.WithAPIKey(config.APIKey),
			googleai.WithDefaultModel(config.Model),
		)
	default:
		return openai.New(
			openai.WithBaseURL(config.BaseURL),
			openai.WithToken(tokenOrNone(config.APIKey)),
			openai.WithModel(config.Model),
		)
	}
}

func newEmbeddingClient(ctx context.Context, config *ai.Config) (embeddings.EmbedderClient, error) {
	switch config.Provider {
	case ai.ProviderGoogle:
		return googleai.New(ctx,
			googleai.WithAPIKey(config.APIKey),
			googleai.WithDefaultEmbeddingModel(config.EmbeddingModel),
		)
	default:
		return openai.New(
			openai.WithBaseURL(config.BaseURL),
			openai.WithToken(tokenOrNone(config.APIKey)),
			openai.WithEmbeddingModel(config.EmbeddingModel),
		)
	}
}

// tokenOrNone returns "none" for local OpenAI-compatible servers that do
// not require authentication.
func tokenOrNone(key string) string {
	if key == "" {
		return "none"
	}
	return key
}
