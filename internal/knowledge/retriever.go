package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agentic-reconciliation-backend/internal/ai"
)

const (
	// DefaultThreshold is the minimum similarity a hit needs to be trusted
	// over a generated answer.
	DefaultThreshold = 0.7

	// DefaultTopK is how many qualifying hits are joined into the answer.
	DefaultTopK = 3

	// DefaultSearchK is how many neighbours are fetched from the index.
	DefaultSearchK = 5

	// NotConfiguredMessage is returned instead of an error when a query has
	// no indexed answer and no generator is available.
	NotConfiguredMessage = "LLM not configured. Please set LLM_MODEL."
)

// Retriever answers queries from the index, falling back to the generator
// when nothing similar enough is stored. Generated answers are indexed so
// the next similar query is served from the index.
type Retriever struct {
	embedder     ai.Embedder
	index        Index
	generator    ai.Generator
	threshold    float32
	topK         int
	searchK      int
	promptPrefix string
	logger       *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithThreshold sets the minimum similarity score. Default is 0.7.
func WithThreshold(threshold float64) Option {
	return func(r *Retriever) error {
		if threshold < 0 || threshold > 1 {
			return ErrInvalidThreshold
		}
		r.threshold = float32(threshold)
		return nil
	}
}

// WithTopK sets how many hits are joined. Default is 3.
func WithTopK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			k = 1
		}
		r.topK = k
		return nil
	}
}

// WithSearchK sets how many neighbours are fetched. Default is 5.
func WithSearchK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			k = 1
		}
		r.searchK = k
		return nil
	}
}

// WithPromptPrefix sets the text prepended to the query for the fallback.
func WithPromptPrefix(prefix string) Option {
	return func(r *Retriever) error {
		r.promptPrefix = prefix
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a retriever. generator may be nil.
func NewRetriever(embedder ai.Embedder, index Index, generator ai.Generator, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	r := &Retriever{
		embedder:  embedder,
		index:     index,
		generator: generator,
		threshold: DefaultThreshold,
		topK:      DefaultTopK,
		searchK:   DefaultSearchK,
		logger:    slog.Default().With("component", "retriever"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.searchK < r.topK {
		r.searchK = r.topK
	}
	return r, nil
}

// Retrieve returns stored knowledge for query, or a generated answer.
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, error) {
	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}

	hits, err := r.index.Search(ctx, vector, r.searchK)
	if err != nil {
		return "", fmt.Errorf("searching index: %w", err)
	}

	relevant := make([]string, 0, r.topK)
	for _, hit := range hits {
		if hit.Score < r.threshold {
			continue
		}
		relevant = append(relevant, hit.Text)
		if len(relevant) == r.topK {
			break
		}
	}
	if len(relevant) > 0 {
		r.logger.Debug("served from index", "hits", len(relevant))
		return strings.Join(relevant, "\n"), nil
	}

	if r.generator == nil {
		r.logger.Warn("no indexed answer and no generator configured")
		return NotConfiguredMessage, nil
	}

	answer, err := r.generator.Generate(ctx, r.promptPrefix+query)
	if err != nil {
		return "", fmt.Errorf("generating fallback answer: %w", err)
	}

	if strings.TrimSpace(answer) != "" {
		if err := r.AddDocuments(ctx, answer); err != nil {
			return "", err
		}
	}
	r.logger.Debug("served from generator", "length", len(answer))
	return answer, nil
}

// AddDocuments embeds texts and appends them to the index.
func (r *Retriever) AddDocuments(ctx context.Context, texts ...string) error {
	if len(texts) == 0 {
		return nil
	}

	vectors, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return ErrVectorMismatch
	}

	docs := make([]Document, len(texts))
	for i, text := range texts {
		docs[i] = Document{Text: text, Vector: vectors[i]}
	}
	if _, err := r.index.Add(ctx, docs); err != nil {
		return err
	}
	return nil
}
