// Package compliance implements the tax-compliance flow: document
// monitoring, deadline tracking and regulation lookups.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrIndexerRequired is returned when a Monitor has nowhere to index documents.
var ErrIndexerRequired = errors.New("compliance: document indexer and ledger are required")

// monitoredExtensions are the formats text can be extracted from.
var monitoredExtensions = []string{".txt", ".md", ".csv", ".json", ".pdf", ".docx", ".xlsx"}

// DocumentIndexer adds texts to the regulation knowledge base.
type DocumentIndexer interface {
	AddDocuments(ctx context.Context, texts ...string) error
}

// ProcessedLedger remembers which files were already indexed.
type ProcessedLedger interface {
	IsProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, keys ...string) error
}

// Monitor indexes files that appear in the watched directories.
type Monitor struct {
	dirs    []string
	indexer DocumentIndexer
	ledger  ProcessedLedger
	logger  *slog.Logger
}

// NewMonitor creates a monitor over dirs. Directories that do not exist
// are skipped at scan time.
func NewMonitor(indexer DocumentIndexer, ledger ProcessedLedger, dirs ...string) (*Monitor, error) {
	if indexer == nil || ledger == nil {
		return nil, ErrIndexerRequired
	}
	return &Monitor{
		dirs:    dirs,
		indexer: indexer,
		ledger:  ledger,
		logger:  slog.Default().With("component", "document-monitor"),
	}, nil
}

// Scan indexes every new file and returns how many were processed. A file
// whose text cannot be extracted is skipped and retried on the next scan.
func (m *Monitor) Scan(ctx context.Context) (int, error) {
	files, err := m.newFiles(ctx)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}

	docs := make([]string, 0, len(files))
	processed := make([]string, 0, len(files))
	for _, path := range files {
		text, err := extractText(ctx, path)
		if err != nil {
			m.logger.Warn("skipping unreadable document", "path", path, "error", err)
			continue
		}
		docs = append(docs, fmt.Sprintf("File: %s\nContent:\n%s", path, text))
		processed = append(processed, path)
	}

	if err := m.indexer.AddDocuments(ctx, docs...); err != nil {
		return 0, fmt.Errorf("indexing documents: %w", err)
	}
	if err := m.ledger.MarkProcessed(ctx, processed...); err != nil {
		return 0, err
	}

	m.logger.Info("documents indexed", "count", len(processed))
	return len(processed), nil
}

func (m *Monitor) newFiles(ctx context.Context) ([]string, error) {
	var files []string
	for _, dir := range m.dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Debug("watch directory missing", "dir", dir)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !slices.Contains(monitoredExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			done, err := m.ledger.IsProcessed(ctx, path)
			if err != nil {
				return nil, err
			}
			if !done {
				files = append(files, path)
			}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// StatusMessage is the human readable result of a scan.
func StatusMessage(processed int) string {
	return fmt.Sprintf("Processed %d new files", processed)
}
