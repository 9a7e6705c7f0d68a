package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Ledger remembers which source keys (file paths) were already indexed.
type Ledger struct {
	backend *Backend
	prefix  string
}

// NewLedger opens the namespace on backend.
func NewLedger(backend *Backend, namespace string) (*Ledger, error) {
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}
	return &Ledger{backend: backend, prefix: namespace + ":processed:"}, nil
}

// IsProcessed reports whether key was marked.
func (l *Ledger) IsProcessed(ctx context.Context, key string) (bool, error) {
	found := false
	err := l.backend.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(l.prefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reading ledger: %w", err)
	}
	return found, nil
}

// MarkProcessed records keys with the current time.
func (l *Ledger) MarkProcessed(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	err := l.backend.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Set([]byte(l.prefix+key), stamp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}
