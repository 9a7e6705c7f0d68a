package knowledge

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Document is one indexed text with its embedding.
type Document struct {
	ID        uint64    `json:"id"`
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredDocument is a search hit. Score is the cosine similarity in [-1,1].
type ScoredDocument struct {
	Document
	Score float32
}

// Index stores documents and answers nearest-neighbour queries.
type Index interface {
	// Add stores the documents and returns their assigned ids.
	Add(ctx context.Context, docs []Document) ([]uint64, error)

	// Search returns up to k documents ordered by descending similarity.
	Search(ctx context.Context, vector []float32, k int) ([]ScoredDocument, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
}

// BadgerIndex is an Index over one namespace of a Backend. Search is a full
// scan, fine for the corpus sizes a single reconciliation team produces.
type BadgerIndex struct {
	backend   *Backend
	docPrefix []byte
	seq       *badger.Sequence
	logger    *slog.Logger
}

var _ Index = (*BadgerIndex)(nil)

// NewIndex opens the namespace on backend.
func NewIndex(backend *Backend, namespace string) (*BadgerIndex, error) {
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}
	seq, err := backend.sequence(namespace + ":seq")
	if err != nil {
		return nil, fmt.Errorf("allocating %s sequence: %w", namespace, err)
	}
	return &BadgerIndex{
		backend:   backend,
		docPrefix: []byte(namespace + ":doc:"),
		seq:       seq,
		logger:    slog.Default().With("component", "knowledge-index", "namespace", namespace),
	}, nil
}

// Close releases the id sequence. The backend stays open.
func (x *BadgerIndex) Close() error {
	return x.seq.Release()
}

func (x *BadgerIndex) key(id uint64) []byte {
	k := make([]byte, len(x.docPrefix)+8)
	copy(k, x.docPrefix)
	binary.BigEndian.PutUint64(k[len(x.docPrefix):], id)
	return k
}

// Add implements Index.
func (x *BadgerIndex) Add(ctx context.Context, docs []Document) ([]uint64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(docs))
	for i := range docs {
		id, err := x.seq.Next()
		if err != nil {
			return nil, fmt.Errorf("allocating document id: %w", err)
		}
		ids[i] = id + 1
	}

	err := x.backend.db.Update(func(txn *badger.Txn) error {
		for i, doc := range docs {
			doc.ID = ids[i]
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = time.Now().UTC()
			}
			val, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			if err := txn.Set(x.key(doc.ID), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	x.logger.Debug("added documents", "count", len(ids))
	return ids, nil
}

// Search implements Index.
func (x *BadgerIndex) Search(ctx context.Context, vector []float32, k int) ([]ScoredDocument, error) {
	var results []ScoredDocument

	err := x.scan(func(doc Document) error {
		if len(doc.Vector) == 0 {
			return nil
		}
		results = append(results, ScoredDocument{
			Document: doc,
			Score:    cosineSimilarity(vector, doc.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b ScoredDocument) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count implements Index.
func (x *BadgerIndex) Count(ctx context.Context) (int, error) {
	n := 0
	err := x.backend.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = x.docPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (x *BadgerIndex) scan(fn func(Document) error) error {
	return x.backend.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = x.docPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var doc Document
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			})
			if err != nil {
				return fmt.Errorf("decoding document: %w", err)
			}
			if err := fn(doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// cosineSimilarity returns 0 when either vector has zero length.
func cosineSimilarity(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
