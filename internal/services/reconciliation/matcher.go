package reconciliation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentic-reconciliation-backend/internal/models"
	"agentic-reconciliation-backend/internal/services/matching"
)

const parseFailed = "Parsing failed"

// MatchResult is the matching stage output for one transaction.
type MatchResult struct {
	ID               uuid.UUID `json:"_id"`
	MatchedInvoiceID *string   `json:"matched_invoice_id"`
	MatchScore       float64   `json:"match_score"`
	Status           string    `json:"status"`
	Justification    string    `json:"justification"`
}

type matchReply struct {
	MatchedInvoiceID *looseString `json:"matched_invoice_id"`
	MatchScore       looseFloat   `json:"match_score"`
	Status           string       `json:"status"`
	Justification    string       `json:"justification"`
}

// candidateView is how a ranked invoice is shown to the model.
type candidateView struct {
	InvoiceID     string  `json:"invoice_id"`
	InvoiceNumber string  `json:"invoice_number,omitempty"`
	CustomerName  string  `json:"customer_name"`
	Amount        string  `json:"amount"`
	DueDate       string  `json:"due_date,omitempty"`
	Status        string  `json:"status"`
	Score         float64 `json:"similarity"`
}

// MatchInvoices asks the model to pick the invoice each transaction pays.
func (s *Service) MatchInvoices(ctx context.Context, txs []*models.Transaction) ([]MatchResult, error) {
	results := make([]MatchResult, len(txs))
	err := s.forEach(ctx, len(txs), func(ctx context.Context, i int) error {
		res, err := s.matchOne(ctx, txs[i])
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

func (s *Service) matchOne(ctx context.Context, tx *models.Transaction) (MatchResult, error) {
	txJSON := toJSON(tx)

	var supporting string
	if s.retriever != nil {
		text, err := s.retriever.Retrieve(ctx, txJSON)
		if err != nil {
			return MatchResult{}, fmt.Errorf("retrieving context: %w", err)
		}
		supporting = text
	}

	prompt, err := matchPrompt.Format(map[string]any{
		"transaction": txJSON,
		"context":     supporting,
		"candidates":  toJSON(s.candidatesFor(ctx, tx)),
	})
	if err != nil {
		return MatchResult{}, fmt.Errorf("formatting match prompt: %w", err)
	}

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return MatchResult{}, fmt.Errorf("generating match: %w", err)
	}

	res := MatchResult{ID: tx.ID, Status: models.StatusUnmatched, Justification: parseFailed}
	if parsed, ok := decodeReply[matchReply](reply); ok {
		res = normalizeMatch(tx.ID, parsed)
	} else {
		s.logger.Warn("unparsable match reply", "transaction_id", tx.ID)
	}

	tx.MatchedInvoiceID = res.MatchedInvoiceID
	score := res.MatchScore
	tx.MatchScore = &score
	tx.Status = res.Status
	tx.Justification = res.Justification
	tx.Stage = models.StageMatched
	if err := s.txs.UpdateTransaction(ctx, tx, models.MatchColumns...); err != nil {
		return MatchResult{}, fmt.Errorf("saving match: %w", err)
	}
	return res, nil
}

func normalizeMatch(id uuid.UUID, r matchReply) MatchResult {
	res := MatchResult{
		ID:            id,
		MatchScore:    min(max(float64(r.MatchScore), 0), 1),
		Status:        strings.ToUpper(strings.TrimSpace(r.Status)),
		Justification: r.Justification,
	}
	if res.Status != models.StatusMatched {
		res.Status = models.StatusUnmatched
	}
	if r.MatchedInvoiceID != nil {
		if invoiceID := strings.TrimSpace(string(*r.MatchedInvoiceID)); invoiceID != "" {
			res.MatchedInvoiceID = &invoiceID
		}
	}
	return res
}

// candidatesFor ranks open invoices of the same amount. Lookup failures
// leave the model with no candidates rather than failing the stage.
func (s *Service) candidatesFor(ctx context.Context, tx *models.Transaction) []candidateView {
	views := []candidateView{}
	if s.maxCandidates == 0 {
		return views
	}

	invoices, err := s.invoices.FindByAmount(ctx, tx.Amount)
	if err != nil {
		s.logger.Warn("invoice lookup failed", "transaction_id", tx.ID, "error", err)
		return views
	}

	for _, c := range matching.RankCandidates(tx, invoices) {
		if len(views) == s.maxCandidates {
			break
		}
		v := candidateView{
			InvoiceID:     c.Invoice.InvoiceID,
			InvoiceNumber: c.Invoice.InvoiceNumber,
			CustomerName:  c.Invoice.CustomerName,
			Amount:        c.Invoice.Amount.String(),
			Status:        c.Invoice.Status,
			Score:         c.FinalScore,
		}
		if c.Invoice.DueDate != nil {
			v.DueDate = c.Invoice.DueDate.Format(models.DateLayout)
		}
		views = append(views, v)
	}
	return views
}
