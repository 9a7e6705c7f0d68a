package knowledge

import "errors"

var (
	// ErrEmbedderRequired is returned when a Retriever is built without an embedder.
	ErrEmbedderRequired = errors.New("knowledge: embedder is required")

	// ErrIndexRequired is returned when a Retriever is built without an index.
	ErrIndexRequired = errors.New("knowledge: index is required")

	// ErrInvalidThreshold is returned for a similarity threshold outside [0,1].
	ErrInvalidThreshold = errors.New("knowledge: threshold must be between 0 and 1")

	// ErrEmptyNamespace is returned when an index or ledger has no namespace.
	ErrEmptyNamespace = errors.New("knowledge: namespace cannot be empty")

	// ErrVectorMismatch is returned when the embedder returns a different
	// number of vectors than texts.
	ErrVectorMismatch = errors.New("knowledge: embedding count does not match document count")
)
