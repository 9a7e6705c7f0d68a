package compliance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/prompts"

	"agentic-reconciliation-backend/internal/ai"
	"agentic-reconciliation-backend/internal/knowledge"
)

var checkPrompt = prompts.PromptTemplate{
	Template:       "Given this transaction data: {{.data}}, check for any Indian tax violations and summarize findings.",
	InputVariables: []string{"data"},
	TemplateFormat: prompts.TemplateFormatGoTemplate,
}

// Checker asks the model for a free-text tax compliance review.
type Checker struct {
	generator ai.Generator
}

// NewChecker creates a checker. generator may be nil, in which case Check
// answers with knowledge.NotConfiguredMessage.
func NewChecker(generator ai.Generator) *Checker {
	return &Checker{generator: generator}
}

// Check reviews data, which is encoded as JSON into the prompt.
func (c *Checker) Check(ctx context.Context, data any) (string, error) {
	if c.generator == nil {
		return knowledge.NotConfiguredMessage, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding transaction data: %w", err)
	}
	prompt, err := checkPrompt.Format(map[string]any{"data": string(encoded)})
	if err != nil {
		return "", fmt.Errorf("formatting compliance prompt: %w", err)
	}
	answer, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("checking compliance: %w", err)
	}
	return answer, nil
}
