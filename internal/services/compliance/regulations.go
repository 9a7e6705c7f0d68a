package compliance

import (
	"agentic-reconciliation-backend/internal/ai"
	"agentic-reconciliation-backend/internal/knowledge"
)

// RegulationPrefix is prepended to questions the index cannot answer.
const RegulationPrefix = "Tax regulation query: "

// NewRegulationRetriever builds the knowledge retriever used for tax
// regulation questions. generator may be nil.
func NewRegulationRetriever(embedder ai.Embedder, index knowledge.Index, generator ai.Generator, opts ...knowledge.Option) (*knowledge.Retriever, error) {
	opts = append([]knowledge.Option{knowledge.WithPromptPrefix(RegulationPrefix)}, opts...)
	return knowledge.NewRetriever(embedder, index, generator, opts...)
}
