package reconciliation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-reconciliation-backend/internal/ai/mock"
	"agentic-reconciliation-backend/internal/models"
	"agentic-reconciliation-backend/internal/repository"
)

var fixedNow = time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)

type fakeRetriever struct {
	mu      sync.Mutex
	answer  string
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.answer, f.err
}

func newTestService(t *testing.T, gen *mock.Generator, opts ...Option) (*Service, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	svc, err := NewService(Deps{
		Transactions: store,
		Invoices:     store,
		Logs:         store,
		Generator:    gen,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(svc.Release)
	return svc, store
}

// seed stores txs as if extracted and returns the write count afterwards.
func seed(t *testing.T, store *repository.MemoryStore, txs ...*models.Transaction) int {
	t.Helper()
	for _, tx := range txs {
		if tx.ID == uuid.Nil {
			tx.ID = uuid.New()
		}
		tx.Stage = models.StageExtracted
	}
	require.NoError(t, store.InsertTransactions(context.Background(), txs))
	return store.Writes()
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	store := repository.NewMemoryStore()

	_, err := NewService(Deps{Transactions: store, Invoices: store, Logs: store})
	assert.ErrorIs(t, err, ErrGeneratorRequired)

	_, err = NewService(Deps{Generator: mock.NewGenerator()})
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestMatchInvoicesAppliesReply(t *testing.T) {
	ctx := context.Background()
	gen := mock.NewGenerator("Looking at the context...\n" +
		`{"matched_invoice_id": "INV-7", "match_score": 1.4, "status": "matched", "justification": "same amount and payer"}`)
	svc, store := newTestService(t, gen)
	retriever := &fakeRetriever{answer: "INV-7 Acme Traders 1200"}
	svc.retriever = retriever

	due := fixedNow.AddDate(0, 0, 2)
	_, err := store.CreateInvoice(ctx, &models.Invoice{
		InvoiceID: "INV-7", CustomerName: "Acme Traders",
		Amount: decimal.NewFromInt(1200), Status: "sent", DueDate: &due,
	})
	require.NoError(t, err)

	tx := &models.Transaction{Amount: decimal.NewFromInt(1200), Fields: map[string]any{"party": "ACME TRADERS"}}
	seed(t, store, tx)

	results, err := svc.MatchInvoices(ctx, []*models.Transaction{tx})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, tx.ID, res.ID)
	require.NotNil(t, res.MatchedInvoiceID)
	assert.Equal(t, "INV-7", *res.MatchedInvoiceID)
	assert.Equal(t, 1.0, res.MatchScore)
	assert.Equal(t, models.StatusMatched, res.Status)

	require.Len(t, retriever.queries, 1)
	assert.Contains(t, retriever.queries[0], tx.ID.String())

	prompt := gen.Prompts()[0]
	assert.Contains(t, prompt, "INV-7 Acme Traders 1200")
	assert.Contains(t, prompt, `"invoice_id":"INV-7"`)

	stored, ok := store.Transaction(tx.ID)
	require.True(t, ok)
	assert.Equal(t, models.StageMatched, stored.Stage)
	assert.Equal(t, models.StatusMatched, stored.Status)
	assert.Equal(t, "same amount and payer", stored.Justification)
}

func TestMatchInvoicesDefaultsOnGarbage(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, mock.NewGenerator("I am not sure which invoice this is."))
	tx := &models.Transaction{Amount: decimal.NewFromInt(5)}
	seed(t, store, tx)

	results, err := svc.MatchInvoices(ctx, []*models.Transaction{tx})
	require.NoError(t, err)

	assert.Equal(t, MatchResult{ID: tx.ID, Status: models.StatusUnmatched, Justification: "Parsing failed"}, results[0])
	stored, _ := store.Transaction(tx.ID)
	assert.Equal(t, models.StageMatched, stored.Stage)
	require.NotNil(t, stored.MatchScore)
	assert.Zero(t, *stored.MatchScore)
}

func TestMatchInvoicesUnknownStatusIsUnmatched(t *testing.T) {
	svc, store := newTestService(t, mock.NewGenerator(`{"matched_invoice_id": "", "match_score": -2, "status": "PARTIAL"}`))
	tx := &models.Transaction{}
	seed(t, store, tx)

	results, err := svc.MatchInvoices(context.Background(), []*models.Transaction{tx})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnmatched, results[0].Status)
	assert.Nil(t, results[0].MatchedInvoiceID)
	assert.Zero(t, results[0].MatchScore)
}

func TestMatchInvoicesPropagatesRetrieverError(t *testing.T) {
	svc, store := newTestService(t, mock.NewGenerator("{}"))
	svc.retriever = &fakeRetriever{err: errors.New("index offline")}
	tx := &models.Transaction{}
	seed(t, store, tx)

	_, err := svc.MatchInvoices(context.Background(), []*models.Transaction{tx})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index offline")
}

func TestCategorizeAlwaysYieldsCategory(t *testing.T) {
	ctx := context.Background()
	gen := mock.NewGenerator(
		`{"category": "Travel", "gl_code": 6100, "gst_rate": "5%"}`,
		"no idea",
		`{"category": "  ", "gl_code": "", "gst_rate": 18}`,
	)
	svc, store := newTestService(t, gen)
	txs := []*models.Transaction{{}, {}, {}}
	seed(t, store, txs...)

	results, err := svc.Categorize(ctx, txs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, CategoryResult{ID: txs[0].ID, Category: "Travel", GLCode: "6100", GSTRate: 5}, results[0])
	assert.Equal(t, CategoryResult{ID: txs[1].ID, Category: DefaultCategory, GLCode: DefaultGLCode}, results[1])
	assert.Equal(t, CategoryResult{ID: txs[2].ID, Category: DefaultCategory, GLCode: DefaultGLCode, GSTRate: 18}, results[2])

	for _, tx := range txs {
		assert.NotEmpty(t, tx.Category)
		stored, _ := store.Transaction(tx.ID)
		assert.Equal(t, models.StageCategorized, stored.Stage)
		assert.Equal(t, tx.Category, stored.Category)
	}
	assert.Contains(t, gen.Prompts()[0], "Indian GL codes")
}

func TestDetectDiscrepanciesUnparsableIsLow(t *testing.T) {
	svc, store := newTestService(t, mock.NewGenerator("```\nnot json\n```"))
	tx := &models.Transaction{}
	seed(t, store, tx)

	results, err := svc.DetectDiscrepancies(context.Background(), []*models.Transaction{tx})
	require.NoError(t, err)

	res := results[0]
	assert.Equal(t, models.SeverityLow, res.Severity)
	assert.NotNil(t, res.Flags)
	assert.Empty(t, res.Flags)
	assert.Equal(t, "Parsing failed", res.Justification)

	stored, _ := store.Transaction(tx.ID)
	assert.Equal(t, models.StageChecked, stored.Stage)
	assert.Equal(t, models.SeverityLow, stored.Severity)
}

func TestDetectDiscrepanciesUsesMatchedInvoice(t *testing.T) {
	ctx := context.Background()
	gen := mock.NewGenerator(
		`{"flags": ["amount differs", ""], "justification": "short paid", "severity": "high"}`,
		`{"flags": "late", "justification": "", "severity": "CRITICAL"}`,
	)
	svc, store := newTestService(t, gen)
	_, err := store.CreateInvoice(ctx, &models.Invoice{InvoiceID: "INV-1", CustomerName: "Globex", Amount: decimal.NewFromInt(900)})
	require.NoError(t, err)

	known, missing := "INV-1", "INV-404"
	txs := []*models.Transaction{
		{Amount: decimal.NewFromInt(850), MatchedInvoiceID: &known},
		{MatchedInvoiceID: &missing},
	}
	seed(t, store, txs...)

	results, err := svc.DetectDiscrepancies(ctx, txs)
	require.NoError(t, err)

	assert.Equal(t, []string{"amount differs"}, results[0].Flags)
	assert.Equal(t, models.SeverityHigh, results[0].Severity)
	assert.Equal(t, []string{"late"}, results[1].Flags)
	assert.Equal(t, models.SeverityLow, results[1].Severity)

	prompts := gen.Prompts()
	assert.Contains(t, prompts[0], `"customer_name":"Globex"`)
	assert.Contains(t, prompts[1], "Invoice: {}")
}

func TestApproveReportsAndLogs(t *testing.T) {
	ctx := context.Background()
	gen := mock.NewGenerator(`{"report_id": "R-42", "timestamp": "2024-04-01", "summary": "All good", "pdf_url": "", "status": "approved"}`)
	svc, store := newTestService(t, gen)

	batchID := uuid.New()
	require.NoError(t, store.CreateBatch(ctx, &models.UploadBatch{ID: batchID, Status: models.BatchStatusExtracted}))
	txs := []*models.Transaction{
		{UploadBatchID: &batchID, Amount: decimal.NewFromInt(100), Status: models.StatusMatched},
		{UploadBatchID: &batchID, Amount: decimal.NewFromInt(40), Status: models.StatusUnmatched, Flags: []string{"no invoice"}, Severity: models.SeverityHigh},
	}
	seed(t, store, txs...)

	report, err := svc.Approve(ctx, txs)
	require.NoError(t, err)

	assert.Equal(t, "R-42", report.ReportID)
	assert.Equal(t, models.ApprovalApproved, report.Status)
	assert.Equal(t, "reports/R-42.pdf", report.PDFURL)
	assert.Equal(t, 2, report.Totals.TotalTransactions)
	assert.Equal(t, 1, report.Totals.MatchedCount)
	assert.Equal(t, report.Totals.TotalTransactions, report.Totals.MatchedCount+report.Totals.UnmatchedCount)
	assert.LessOrEqual(t, report.Totals.FlaggedCount, report.Totals.TotalTransactions)
	assert.Contains(t, gen.Prompts()[0], `"matched_count":1`)

	logs, err := store.RecentLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, *report.LogID, logs[0].ID)
	assert.Equal(t, []string{txs[0].ID.String(), txs[1].ID.String()}, []string(logs[0].TransactionIDs))
	assert.Equal(t, fixedNow, logs[0].Timestamp)
	assert.Equal(t, 1, logs[0].Summary.Data().FlaggedCount)

	for _, tx := range txs {
		assert.Equal(t, models.StageReported, tx.Stage)
		stored, _ := store.Transaction(tx.ID)
		assert.Equal(t, models.StageReported, stored.Stage)
	}
	batch, err := store.GetBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, batch.Status)
}

func TestApproveDefaultsOnGarbage(t *testing.T) {
	svc, store := newTestService(t, mock.NewGenerator("Report attached."))
	tx := &models.Transaction{}
	seed(t, store, tx)

	report, err := svc.Approve(context.Background(), []*models.Transaction{tx})
	require.NoError(t, err)
	assert.Equal(t, "NA", report.ReportID)
	assert.Equal(t, "Parsing failed", report.Summary)
	assert.Equal(t, "reports/NA.pdf", report.PDFURL)
	assert.Equal(t, models.ApprovalRejected, report.Status)
	assert.Equal(t, fixedNow.Format(time.RFC3339), report.Timestamp)
}

func TestEmptyBatchMakesNoCallsOrWrites(t *testing.T) {
	ctx := context.Background()
	gen := mock.NewGenerator(`{"status": "APPROVED"}`)
	svc, store := newTestService(t, gen)

	matched, err := svc.MatchInvoices(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, matched)

	categorized, err := svc.Categorize(ctx, []*models.Transaction{})
	require.NoError(t, err)
	assert.Empty(t, categorized)

	checked, err := svc.DetectDiscrepancies(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, checked)

	report, err := svc.Approve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, report.Status)
	assert.Zero(t, report.Totals.TotalTransactions)
	assert.Nil(t, report.LogID)

	assert.Zero(t, gen.CallCount())
	assert.Zero(t, store.Writes())
}

func TestConcurrentStageKeepsInputOrder(t *testing.T) {
	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		// echo the payer back as the category
		for _, name := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
			if strings.Contains(prompt, name) {
				return `{"category": "` + name + `", "gl_code": "1", "gst_rate": 0}`, nil
			}
		}
		return "", nil
	}
	svc, store := newTestService(t, gen, WithConcurrency(4))

	names := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	txs := make([]*models.Transaction, len(names))
	for i, name := range names {
		txs[i] = &models.Transaction{Fields: map[string]any{"party": name}}
	}
	seed(t, store, txs...)

	results, err := svc.Categorize(context.Background(), txs)
	require.NoError(t, err)
	for i, name := range names {
		assert.Equal(t, name, results[i].Category)
		assert.Equal(t, txs[i].ID, results[i].ID)
	}
	assert.Equal(t, len(names), gen.CallCount())
}

func TestStageErrorStopsSequentialRun(t *testing.T) {
	gen := mock.NewGenerator()
	gen.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("rate limited")
	}
	svc, store := newTestService(t, gen)
	txs := []*models.Transaction{{}, {}}
	seed(t, store, txs...)

	_, err := svc.Categorize(context.Background(), txs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 1, gen.CallCount())
}
