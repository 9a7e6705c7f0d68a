package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-reconciliation-backend/internal/ai/mock"
)

// axisEmbedder maps texts to fixed vectors by keyword so similarity is
// predictable in tests.
func axisEmbedder() *mock.Embedder {
	e := mock.NewEmbedder()
	e.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "gst"):
			return []float32{1, 0, 0}, nil
		case strings.Contains(lower, "tds"):
			return []float32{0, 1, 0}, nil
		default:
			return []float32{0, 0, 1}, nil
		}
	}
	return e
}

func newTestRetriever(t *testing.T, gen *mock.Generator, opts ...Option) (*Retriever, *BadgerIndex) {
	t.Helper()
	idx := openIndex(t, openMemoryBackend(t), "regulations")
	var r *Retriever
	var err error
	if gen == nil {
		r, err = NewRetriever(axisEmbedder(), idx, nil, opts...)
	} else {
		r, err = NewRetriever(axisEmbedder(), idx, gen, opts...)
	}
	require.NoError(t, err)
	return r, idx
}

func TestRetrieveUsesIndexWhenSimilarDocumentExists(t *testing.T) {
	ctx := context.Background()
	gen := mock.NewGenerator("should not be used")
	r, idx := newTestRetriever(t, gen)

	require.NoError(t, r.AddDocuments(ctx, "GST on exports is zero rated"))

	got, err := r.Retrieve(ctx, "What is the GST rate on exports?")
	require.NoError(t, err)

	assert.Equal(t, "GST on exports is zero rated", got)
	assert.Zero(t, gen.CallCount())
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRetrieveFallsBackOnceAndIndexesAnswer(t *testing.T) {
	ctx := context.Background()
	gen := mock.NewGenerator("TDS on rent is deducted at 10%")
	r, idx := newTestRetriever(t, gen, WithPromptPrefix("Tax regulation query: "))

	require.NoError(t, r.AddDocuments(ctx, "GST on exports is zero rated"))

	got, err := r.Retrieve(ctx, "TDS on rent?")
	require.NoError(t, err)

	assert.Equal(t, "TDS on rent is deducted at 10%", got)
	assert.Equal(t, 1, gen.CallCount())
	assert.Equal(t, []string{"Tax regulation query: TDS on rent?"}, gen.Prompts())
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The generated answer now serves the next similar query.
	again, err := r.Retrieve(ctx, "TDS rate for rent")
	require.NoError(t, err)
	assert.Equal(t, "TDS on rent is deducted at 10%", again)
	assert.Equal(t, 1, gen.CallCount())
}

func TestRetrieveWithoutGenerator(t *testing.T) {
	ctx := context.Background()
	r, idx := newTestRetriever(t, nil)

	got, err := r.Retrieve(ctx, "TDS on rent?")
	require.NoError(t, err)
	assert.Equal(t, NotConfiguredMessage, got)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRetrieveJoinsTopThree(t *testing.T) {
	ctx := context.Background()
	gen := mock.NewGenerator()
	r, _ := newTestRetriever(t, gen)

	require.NoError(t, r.AddDocuments(ctx, "GST a", "GST b", "GST c", "GST d", "TDS x"))

	got, err := r.Retrieve(ctx, "gst")
	require.NoError(t, err)

	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "GST"))
	}
	assert.Zero(t, gen.CallCount())
}

func TestRetrieveRespectsThreshold(t *testing.T) {
	ctx := context.Background()
	e := mock.NewEmbedder()
	e.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == "doc" {
			return []float32{1, 0}, nil
		}
		return []float32{0.5, 0.5}, nil // cos = 0.7071 against doc
	}
	idx := openIndex(t, openMemoryBackend(t), "ns")
	gen := mock.NewGenerator("generated")

	strict, err := NewRetriever(e, idx, gen, WithThreshold(0.75))
	require.NoError(t, err)
	require.NoError(t, strict.AddDocuments(ctx, "doc"))

	got, err := strict.Retrieve(ctx, "query")
	require.NoError(t, err)
	assert.Equal(t, "generated", got)

	lenient, err := NewRetriever(e, idx, gen, WithThreshold(0.7))
	require.NoError(t, err)
	got, err = lenient.Retrieve(ctx, "query")
	require.NoError(t, err)
	assert.Contains(t, got, "doc")
}

func TestRetrievePropagatesGeneratorError(t *testing.T) {
	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("quota exceeded")
	}
	r, _ := newTestRetriever(t, gen)

	_, err := r.Retrieve(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNewRetrieverValidation(t *testing.T) {
	idx := openIndex(t, openMemoryBackend(t), "ns")

	_, err := NewRetriever(nil, idx, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewRetriever(mock.NewEmbedder(), nil, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewRetriever(mock.NewEmbedder(), idx, nil, WithThreshold(1.5))
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}
