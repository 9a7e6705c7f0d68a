package reconciliation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentic-reconciliation-backend/internal/models"
)

// Fallbacks when the model gives no usable category.
const (
	DefaultCategory = "Uncategorized"
	DefaultGLCode   = "0000"
)

// CategoryResult is the categorization stage output for one transaction.
type CategoryResult struct {
	ID       uuid.UUID `json:"_id"`
	Category string    `json:"category"`
	GLCode   string    `json:"gl_code"`
	GSTRate  float64   `json:"gst_rate"`
}

type categoryReply struct {
	Category string      `json:"category"`
	GLCode   looseString `json:"gl_code"`
	GSTRate  looseFloat  `json:"gst_rate"`
}

// Categorize assigns a category, Indian GL code and GST rate to each
// transaction. Every result has a non-empty category.
func (s *Service) Categorize(ctx context.Context, txs []*models.Transaction) ([]CategoryResult, error) {
	results := make([]CategoryResult, len(txs))
	err := s.forEach(ctx, len(txs), func(ctx context.Context, i int) error {
		res, err := s.categorizeOne(ctx, txs[i])
		if err != nil {
			return fmt.Errorf("transaction %s: %w", txs[i].ID, err)
		}
		results[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) categorizeOne(ctx context.Context, tx *models.Transaction) (CategoryResult, error) {
	prompt, err := categorizePrompt.Format(map[string]any{"transaction": toJSON(tx)})
	if err != nil {
		return CategoryResult{}, fmt.Errorf("formatting category prompt: %w", err)
	}

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return CategoryResult{}, fmt.Errorf("generating category: %w", err)
	}

	res := CategoryResult{ID: tx.ID, Category: DefaultCategory, GLCode: DefaultGLCode}
	if parsed, ok := decodeReply[categoryReply](reply); ok {
		if c := strings.TrimSpace(parsed.Category); c != "" {
			res.Category = c
		}
		if code := strings.TrimSpace(string(parsed.GLCode)); code != "" {
			res.GLCode = code
		}
		res.GSTRate = float64(parsed.GSTRate)
	} else {
		s.logger.Warn("unparsable category reply", "transaction_id", tx.ID)
	}

	tx.Category = res.Category
	tx.GLCode = res.GLCode
	rate := res.GSTRate
	tx.GSTRate = &rate
	tx.Stage = models.StageCategorized
	if err := s.txs.UpdateTransaction(ctx, tx, models.CategoryColumns...); err != nil {
		return CategoryResult{}, fmt.Errorf("saving category: %w", err)
	}
	return res, nil
}
