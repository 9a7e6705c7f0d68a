package compliance

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-reconciliation-backend/internal/ai/mock"
	"agentic-reconciliation-backend/internal/knowledge"
)

type memoryIndexer struct {
	mu   sync.Mutex
	docs []string
}

func (m *memoryIndexer) AddDocuments(ctx context.Context, texts ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, texts...)
	return nil
}

type memoryLedger struct {
	done map[string]bool
}

func (m *memoryLedger) IsProcessed(ctx context.Context, key string) (bool, error) {
	return m.done[key], nil
}

func (m *memoryLedger) MarkProcessed(ctx context.Context, keys ...string) error {
	if m.done == nil {
		m.done = map[string]bool{}
	}
	for _, k := range keys {
		m.done[k] = true
	}
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMonitorIndexesNewFilesOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "ledger.csv", "a,b\n1,2\n")
	jsonPath := writeFile(t, dir, "rules.json", "{\n  \"gst\": 18\n}")
	writeFile(t, dir, "notes.txt", "TDS applies to rent")
	writeFile(t, dir, "scan.pdf", "%PDF")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))

	indexer := &memoryIndexer{}
	ledger := &memoryLedger{}
	m, err := NewMonitor(indexer, ledger, dir, filepath.Join(dir, "missing"))
	require.NoError(t, err)

	n, err := m.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "Processed 3 new files", StatusMessage(n))

	require.Len(t, indexer.docs, 3)
	assert.Contains(t, indexer.docs, "File: "+csvPath+"\nContent:\na,b\n1,2")
	assert.Contains(t, indexer.docs, "File: "+jsonPath+"\nContent:\n{\"gst\":18}")
	assert.True(t, ledger.done[csvPath])
	assert.False(t, ledger.done[filepath.Join(dir, "scan.pdf")])

	n, err = m.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, indexer.docs, 3)
}

func TestMonitorSkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "broken.json", "{not json")
	writeFile(t, dir, "ok.md", "# GST")

	indexer := &memoryIndexer{}
	ledger := &memoryLedger{}
	m, err := NewMonitor(indexer, ledger, dir)
	require.NoError(t, err)

	n, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, ledger.done[bad])
}

func TestMonitorWithKnowledgeStore(t *testing.T) {
	ctx := context.Background()
	backend, err := knowledge.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	index, err := knowledge.NewIndex(backend, "regulations")
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	ledger, err := knowledge.NewLedger(backend, "documents")
	require.NoError(t, err)

	gen := mock.NewGenerator("generated")
	retriever, err := NewRegulationRetriever(mock.NewEmbedder(), index, gen)
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "gst.txt", "GST on exports is zero rated")

	m, err := NewMonitor(retriever, ledger, dir)
	require.NoError(t, err)
	n, err := m.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	again, err := m.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestNewMonitorValidation(t *testing.T) {
	_, err := NewMonitor(nil, &memoryLedger{})
	assert.ErrorIs(t, err, ErrIndexerRequired)
}
