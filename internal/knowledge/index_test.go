package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryBackend(t *testing.T) *Backend {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func openIndex(t *testing.T, backend *Backend, namespace string) *BadgerIndex {
	t.Helper()
	idx, err := NewIndex(backend, namespace)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexAddAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, openMemoryBackend(t), "regulations")

	ids, err := idx.Add(ctx, []Document{
		{Text: "east", Vector: []float32{1, 0}},
		{Text: "north", Vector: []float32{0, 1}},
		{Text: "north-east", Vector: []float32{1, 1}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])

	hits, err := idx.Search(ctx, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "east", hits[0].Text)
	assert.Equal(t, "north-east", hits[1].Text)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIndexNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend := openMemoryBackend(t)
	invoices := openIndex(t, backend, "invoices")
	regulations := openIndex(t, backend, "regulations")

	_, err := invoices.Add(ctx, []Document{{Text: "INV-1", Vector: []float32{1}}})
	require.NoError(t, err)

	n, err := regulations.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := regulations.Search(ctx, []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	idx, err := NewIndex(backend, "regulations")
	require.NoError(t, err)
	first, err := idx.Add(ctx, []Document{{Text: "GST filing is monthly", Vector: []float32{0.2, 0.8}}})
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	idx, err = NewIndex(backend, "regulations")
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search(ctx, []float32{0.2, 0.8}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "GST filing is monthly", hits[0].Text)

	second, err := idx.Add(ctx, []Document{{Text: "TDS is quarterly", Vector: []float32{1, 0}}})
	require.NoError(t, err)
	assert.NotEqual(t, first[0], second[0])
}

func TestNewIndexRequiresNamespace(t *testing.T) {
	_, err := NewIndex(openMemoryBackend(t), "")
	assert.ErrorIs(t, err, ErrEmptyNamespace)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 3}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 1}, []float32{-1, -1}), 1e-6)
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewLedger(openMemoryBackend(t), "compliance")
	require.NoError(t, err)

	done, err := ledger.IsProcessed(ctx, "data/regulations/gst.txt")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, ledger.MarkProcessed(ctx, "data/regulations/gst.txt"))

	done, err = ledger.IsProcessed(ctx, "data/regulations/gst.txt")
	require.NoError(t, err)
	assert.True(t, done)
}
