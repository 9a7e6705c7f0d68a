package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"agentic-reconciliation-backend/internal/models"
)

// Report is the approval stage output. Totals are computed locally; the
// remaining fields come from the model.
type Report struct {
	ReportID  string               `json:"report_id"`
	Timestamp string               `json:"timestamp"`
	Summary   string               `json:"summary"`
	PDFURL    string               `json:"pdf_url"`
	Status    string               `json:"status"`
	Totals    models.ReportSummary `json:"summary_data"`
	LogID     *uuid.UUID           `json:"log_id,omitempty"`
}

type reportReply struct {
	ReportID  looseString `json:"report_id"`
	Timestamp string      `json:"timestamp"`
	Summary   string      `json:"summary"`
	PDFURL    string      `json:"pdf_url"`
	Status    string      `json:"status"`
}

func defaultReport(now time.Time) Report {
	return Report{
		ReportID:  "NA",
		Timestamp: now.Format(time.RFC3339),
		Summary:   parseFailed,
		PDFURL:    "reports/NA.pdf",
		Status:    models.ApprovalRejected,
	}
}

// Approve summarizes the batch, asks the model for a report and approval
// decision, logs the outcome and marks the transactions reported. An empty
// batch is rejected without calling the model or writing anything.
func (s *Service) Approve(ctx context.Context, txs []*models.Transaction) (*Report, error) {
	now := s.now()
	totals := models.Summarize(txs)

	if len(txs) == 0 {
		report := defaultReport(now)
		report.Summary = "No transactions to reconcile"
		report.Totals = totals
		return &report, nil
	}

	prompt, err := reportPrompt.Format(map[string]any{"summary_data": toJSON(totals)})
	if err != nil {
		return nil, fmt.Errorf("formatting report prompt: %w", err)
	}
	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating report: %w", err)
	}

	report := defaultReport(now)
	if parsed, ok := decodeReply[reportReply](reply); ok {
		report = normalizeReport(parsed, now)
	} else {
		s.logger.Warn("unparsable report reply")
	}
	report.Totals = totals

	ids := make([]uuid.UUID, len(txs))
	idStrings := make([]string, len(txs))
	var batchIDs []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for i, tx := range txs {
		ids[i] = tx.ID
		idStrings[i] = tx.ID.String()
		if tx.UploadBatchID != nil && !seen[*tx.UploadBatchID] {
			seen[*tx.UploadBatchID] = true
			batchIDs = append(batchIDs, *tx.UploadBatchID)
		}
	}

	entry := &models.ReconciliationLog{
		ID:             uuid.New(),
		Timestamp:      now,
		TransactionIDs: datatypes.JSONSlice[string](idStrings),
		Summary:        datatypes.NewJSONType(totals),
		ReportID:       report.ReportID,
		Narrative:      report.Summary,
		PDFReport:      report.PDFURL,
		Status:         report.Status,
		CreatedAt:      now,
	}
	if err := s.logs.InsertLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("writing reconciliation log: %w", err)
	}
	report.LogID = &entry.ID

	if err := s.txs.MarkReported(ctx, ids); err != nil {
		return nil, fmt.Errorf("marking transactions reported: %w", err)
	}
	for _, tx := range txs {
		tx.Stage = models.StageReported
	}
	if err := s.txs.CompleteBatches(ctx, batchIDs, now); err != nil {
		return nil, fmt.Errorf("completing upload batches: %w", err)
	}

	s.logger.Info("reconciliation reported",
		"report_id", report.ReportID,
		"status", report.Status,
		"total", totals.TotalTransactions,
		"matched", totals.MatchedCount,
		"flagged", totals.FlaggedCount,
	)
	return &report, nil
}

func normalizeReport(r reportReply, now time.Time) Report {
	report := Report{
		ReportID:  strings.TrimSpace(string(r.ReportID)),
		Timestamp: strings.TrimSpace(r.Timestamp),
		Summary:   r.Summary,
		PDFURL:    strings.TrimSpace(r.PDFURL),
		Status:    strings.ToUpper(strings.TrimSpace(r.Status)),
	}
	if report.ReportID == "" {
		report.ReportID = "NA"
	}
	if report.Timestamp == "" {
		report.Timestamp = now.Format(time.RFC3339)
	}
	if report.PDFURL == "" {
		report.PDFURL = "reports/" + report.ReportID + ".pdf"
	}
	if report.Status != models.ApprovalApproved {
		report.Status = models.ApprovalRejected
	}
	return report
}
