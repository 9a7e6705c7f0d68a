package ai

import (
	"errors"
	"strings"
)

// Supported provider backends.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "googleai"
)

// Config holds configuration for the LLM and embedding backends.
type Config struct {
	// Provider selects the backend: "openai" (any OpenAI-compatible server,
	// including Ollama and vLLM) or "googleai" (Gemini).
	Provider string `yaml:"provider"`

	// BaseURL is the OpenAI-compatible API root. Ignored for googleai.
	// Example: "http://localhost:11434/v1"
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the backend. Local OpenAI-compatible
	// servers accept any token.
	APIKey string `yaml:"api_key"`

	// Model is the generation model. Empty disables generation; callers
	// then get a nil Generator.
	Model string `yaml:"model"`

	// EmbeddingModel is the embedding model identifier.
	EmbeddingModel string `yaml:"embedding_model"`

	// Temperature for generation. Default: 0
	Temperature float64 `yaml:"temperature"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the backend.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithBaseURL sets the OpenAI-compatible API root.
func WithBaseURL(url string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithModel sets the generation model.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithTemperature sets the generation temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// DefaultConfig targets a local OpenAI-compatible server.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		BaseURL:        "http://localhost:11434/v1",
		APIKey:         "none",
		Model:          "qwen2.5:3b",
		EmbeddingModel: "embeddinggemma",
		Temperature:    0,
	}
}

// NewConfig creates a Config with the default values and applies opts.
//
// Example:
//
//	cfg := NewConfig(
//	    WithProvider(ProviderGoogle),
//	    WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	    WithModel("gemini-1.5-flash"),
//	    WithEmbeddingModel("text-embedding-004"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// GenerationEnabled reports whether a generation model is configured.
func (c *Config) GenerationEnabled() bool {
	return c.Model != ""
}

// Normalize lower-cases the provider and adds the /v1 suffix OpenAI-compatible
// servers expect.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == ProviderOpenAI && c.BaseURL != "" && !strings.HasSuffix(c.BaseURL, "/v1") {
		c.BaseURL = strings.TrimSuffix(c.BaseURL, "/") + "/v1"
	}
}

// Validate normalizes the configuration and checks it is complete.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderOpenAI:
		if c.BaseURL == "" {
			return errors.New("ai config: BaseURL is required for openai")
		}
	case ProviderGoogle:
		if c.APIKey == "" {
			return errors.New("ai config: APIKey is required for googleai")
		}
	default:
		return errors.New("ai config: unknown provider " + c.Provider)
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	return nil
}
