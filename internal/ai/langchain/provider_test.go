package langchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-reconciliation-backend/internal/ai"
)

func TestNewProviderOpenAICompatible(t *testing.T) {
	p, err := NewProvider(context.Background(), ai.NewConfig(ai.WithBaseURL("http://localhost:11434")))
	require.NoError(t, err)
	defer p.Close()

	assert.NotNil(t, p.Generator())
	assert.NotNil(t, p.Embedder())
}

func TestNewProviderWithoutModelHasNoGenerator(t *testing.T) {
	p, err := NewProvider(context.Background(), ai.NewConfig(ai.WithModel("")))
	require.NoError(t, err)

	assert.Nil(t, p.Generator())
	assert.NotNil(t, p.Embedder())
}

func TestNewProviderRejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), ai.NewConfig(ai.WithProvider("unknown")))
	assert.Error(t, err)
}

func TestTokenOrNone(t *testing.T) {
	assert.Equal(t, "none", tokenOrNone(""))
	assert.Equal(t, "sk-test", tokenOrNone("sk-test"))
}
