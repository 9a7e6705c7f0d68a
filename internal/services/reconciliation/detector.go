package reconciliation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentic-reconciliation-backend/internal/models"
)

// DiscrepancyResult is the detection stage output for one transaction.
// Flags is never nil.
type DiscrepancyResult struct {
	ID            uuid.UUID `json:"_id"`
	Flags         []string  `json:"flags"`
	Justification string    `json:"justification"`
	Severity      string    `json:"severity"`
}

type discrepancyReply struct {
	Flags         looseStrings `json:"flags"`
	Justification string       `json:"justification"`
	Severity      string       `json:"severity"`
}

// DetectDiscrepancies compares each transaction with its matched invoice.
func (s *Service) DetectDiscrepancies(ctx context.Context, txs []*models.Transaction) ([]DiscrepancyResult, error) {
	results := make([]DiscrepancyResult, len(txs))
	err := s.forEach(ctx, len(txs), func(ctx context.Context, i int) error {
		res, err := s.detectOne(ctx, txs[i])
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

func (s *Service) detectOne(ctx context.Context, tx *models.Transaction) (DiscrepancyResult, error) {
	prompt, err := discrepancyPrompt.Format(map[string]any{
		"transaction": toJSON(tx),
		"invoice":     s.invoiceReference(ctx, tx),
	})
	if err != nil {
		return DiscrepancyResult{}, fmt.Errorf("formatting discrepancy prompt: %w", err)
	}

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return DiscrepancyResult{}, fmt.Errorf("generating discrepancy check: %w", err)
	}

	res := DiscrepancyResult{
		ID:            tx.ID,
		Flags:         []string{},
		Justification: parseFailed,
		Severity:      models.SeverityLow,
	}
	if parsed, ok := decodeReply[discrepancyReply](reply); ok {
		res.Justification = parsed.Justification
		res.Severity = normalizeSeverity(parsed.Severity)
		for _, flag := range parsed.Flags {
			if flag = strings.TrimSpace(flag); flag != "" {
				res.Flags = append(res.Flags, flag)
			}
		}
	} else {
		s.logger.Warn("unparsable discrepancy reply", "transaction_id", tx.ID)
	}

	tx.Flags = res.Flags
	tx.DiscrepancyJustification = res.Justification
	tx.Severity = res.Severity
	tx.Stage = models.StageChecked
	if err := s.txs.UpdateTransaction(ctx, tx, models.DiscrepancyColumns...); err != nil {
		return DiscrepancyResult{}, fmt.Errorf("saving discrepancy check: %w", err)
	}
	return res, nil
}

// invoiceReference renders the matched invoice, or {} when there is none
// or the lookup fails.
func (s *Service) invoiceReference(ctx context.Context, tx *models.Transaction) string {
	if tx.MatchedInvoiceID == nil || *tx.MatchedInvoiceID == "" {
		return "{}"
	}
	inv, err := s.invoices.FindByInvoiceID(ctx, *tx.MatchedInvoiceID)
	if err != nil {
		s.logger.Debug("matched invoice not found", "invoice_id", *tx.MatchedInvoiceID, "error", err)
		return "{}"
	}
	return toJSON(inv)
}

func normalizeSeverity(s string) string {
	switch sev := strings.ToUpper(strings.TrimSpace(s)); sev {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
		return sev
	default:
		return models.SeverityLow
	}
}
