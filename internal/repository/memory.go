package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"agentic-reconciliation-backend/internal/models"
)

// MemoryStore keeps every collection in process memory. It has the same
// method set as the gorm repositories combined, and is used for dry runs
// and tests. Records are copied on the way in and out.
type MemoryStore struct {
	mu           sync.RWMutex
	batches      map[uuid.UUID]models.UploadBatch
	transactions map[uuid.UUID]models.Transaction
	invoices     []models.Invoice
	logs         []models.ReconciliationLog
	writes       int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches:      make(map[uuid.UUID]models.UploadBatch),
		transactions: make(map[uuid.UUID]models.Transaction),
	}
}

// Writes returns the number of mutating calls that changed state.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *MemoryStore) CreateBatch(ctx context.Context, batch *models.UploadBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batch.ID] = *batch
	s.writes++
	return nil
}

func (s *MemoryStore) GetBatch(ctx context.Context, id uuid.UUID) (*models.UploadBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &batch, nil
}

func (s *MemoryStore) InsertTransactions(ctx context.Context, txs []*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.transactions[tx.ID] = cloneTransaction(tx)
	}
	s.writes++
	return nil
}

// UpdateTransaction copies the named columns of tx onto the stored record.
func (s *MemoryStore) UpdateTransaction(ctx context.Context, tx *models.Transaction, columns ...string) error {
	if len(columns) == 0 {
		return ErrNoColumns
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.transactions[tx.ID]
	if !ok {
		return ErrNotFound
	}
	src := cloneTransaction(tx)
	for _, column := range columns {
		if err := copyColumn(&stored, &src, column); err != nil {
			return err
		}
	}
	s.transactions[tx.ID] = stored
	s.writes++
	return nil
}

func (s *MemoryStore) MarkReported(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if tx, ok := s.transactions[id]; ok {
			tx.Stage = models.StageReported
			s.transactions[id] = tx
		}
	}
	s.writes++
	return nil
}

func (s *MemoryStore) CompleteBatches(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if batch, ok := s.batches[id]; ok {
			batch.Status = models.BatchStatusCompleted
			batch.CompletedAt = &at
			s.batches[id] = batch
		}
	}
	s.writes++
	return nil
}

// Transaction returns a copy of the stored transaction.
func (s *MemoryStore) Transaction(id uuid.UUID) (*models.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	tx = cloneTransaction(&tx)
	return &tx, true
}

func (s *MemoryStore) ListTransactions(
	ctx context.Context,
	batchID uuid.UUID,
	status string,
	cursor string,
	limit int,
) ([]models.Transaction, string, bool, error) {
	s.mu.RLock()
	var txs []models.Transaction
	for _, tx := range s.transactions {
		if tx.UploadBatchID == nil || *tx.UploadBatchID != batchID {
			continue
		}
		if status != "" && status != "all" && tx.Status != status {
			continue
		}
		if cursor != "" && tx.ID.String() <= cursor {
			continue
		}
		txs = append(txs, cloneTransaction(&tx))
	}
	s.mu.RUnlock()

	slices.SortFunc(txs, func(a, b models.Transaction) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	hasMore := false
	var nextCursor string
	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}
	return txs, nextCursor, hasMore, nil
}

func (s *MemoryStore) CreateInvoice(ctx context.Context, inv *models.Invoice) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.invoices {
		if existing.InvoiceID == inv.InvoiceID {
			return false, nil
		}
	}
	stored := *inv
	stored.Fields = maps.Clone(inv.Fields)
	s.invoices = append(s.invoices, stored)
	s.writes++
	return true, nil
}

func (s *MemoryStore) FindByInvoiceID(ctx context.Context, key string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if inv.InvoiceID == key || inv.InvoiceNumber == key {
			return &inv, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByAmount(ctx context.Context, amount decimal.Decimal) ([]models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Invoice
	for _, inv := range s.invoices {
		if inv.Amount.Equal(amount) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *MemoryStore) SearchInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := strings.ToLower(filter.Query)
	var out []models.Invoice
	// newest first, like the SQL ordering
	for i := len(s.invoices) - 1; i >= 0; i-- {
		inv := s.invoices[i]
		if query != "" && !strings.Contains(strings.ToLower(inv.CustomerName), query) {
			continue
		}
		if filter.Amount != nil && !inv.Amount.Equal(*filter.Amount) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, inv.Status) {
			continue
		}
		out = append(out, inv)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertLog(ctx context.Context, entry *models.ReconciliationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	s.writes++
	return nil
}

func (s *MemoryStore) RecentLogs(ctx context.Context, limit int) ([]models.ReconciliationLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ReconciliationLog, 0, min(limit, len(s.logs)))
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.logs[i])
	}
	return out, nil
}

func copyColumn(dst, src *models.Transaction, column string) error {
	switch column {
	case "transaction_ref":
		dst.TransactionRef = src.TransactionRef
	case "amount":
		dst.Amount = src.Amount
	case "transaction_date":
		dst.TransactionDate = src.TransactionDate
	case "fields":
		dst.Fields = src.Fields
	case "stage":
		dst.Stage = src.Stage
	case "matched_invoice_id":
		dst.MatchedInvoiceID = src.MatchedInvoiceID
	case "match_score":
		dst.MatchScore = src.MatchScore
	case "status":
		dst.Status = src.Status
	case "justification":
		dst.Justification = src.Justification
	case "category":
		dst.Category = src.Category
	case "gl_code":
		dst.GLCode = src.GLCode
	case "gst_rate":
		dst.GSTRate = src.GSTRate
	case "flags":
		dst.Flags = src.Flags
	case "discrepancy_justification":
		dst.DiscrepancyJustification = src.DiscrepancyJustification
	case "severity":
		dst.Severity = src.Severity
	default:
		return fmt.Errorf("repository: unknown transaction column %q", column)
	}
	return nil
}

func cloneTransaction(tx *models.Transaction) models.Transaction {
	c := *tx
	c.Fields = maps.Clone(tx.Fields)
	c.Flags = slices.Clone(tx.Flags)
	return c
}
