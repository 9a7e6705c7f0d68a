package langchain

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
)

// Generator implements ai.Generator with a langchaingo chat model.
type Generator struct {
	model       llms.Model
	temperature float64
	logger      *slog.Logger
}

// Generate sends prompt as a single human message and returns the text of
// the first choice.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("generating", "prompt_length", len(prompt))

	text, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, llms.WithTemperature(g.temperature))
	if err != nil {
		g.logger.Error("generation failed", "err", err)
		return "", err
	}
	return text, nil
}
