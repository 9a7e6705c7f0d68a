package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Approval statuses.
const (
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

// ReportSummary holds the counts the approver computes locally, without the
// LLM. MatchedCount+UnmatchedCount always equals TotalTransactions.
type ReportSummary struct {
	TotalTransactions int             `json:"total_transactions"`
	MatchedCount      int             `json:"matched_count"`
	UnmatchedCount    int             `json:"unmatched_count"`
	FlaggedCount      int             `json:"flagged_count"`
	HighSeverityCount int             `json:"high_severity_count"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	MatchedAmount     decimal.Decimal `json:"matched_amount"`
}

// Summarize computes the report counts for a batch.
func Summarize(txs []*Transaction) ReportSummary {
	s := ReportSummary{
		TotalTransactions: len(txs),
		TotalAmount:       decimal.Zero,
		MatchedAmount:     decimal.Zero,
	}
	for _, tx := range txs {
		s.TotalAmount = s.TotalAmount.Add(tx.Amount)
		if tx.IsMatched() {
			s.MatchedCount++
			s.MatchedAmount = s.MatchedAmount.Add(tx.Amount)
		}
		if tx.IsFlagged() {
			s.FlaggedCount++
		}
		if tx.Severity == SeverityHigh {
			s.HighSeverityCount++
		}
	}
	s.UnmatchedCount = s.TotalTransactions - s.MatchedCount
	return s
}

// ReconciliationLog is the audit entry written when a batch is approved or
// rejected.
type ReconciliationLog struct {
	ID             uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp      time.Time                         `gorm:"index" json:"timestamp"`
	TransactionIDs datatypes.JSONSlice[string]       `json:"transactions"`
	Summary        datatypes.JSONType[ReportSummary] `json:"summary"`
	ReportID       string                            `json:"report_id"`
	Narrative      string                            `json:"narrative"`
	PDFReport      string                            `json:"pdf_report"`
	Status         string                            `gorm:"index" json:"status"`
	CreatedAt      time.Time                         `json:"created_at"`
}
