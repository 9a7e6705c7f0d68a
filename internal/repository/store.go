package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"agentic-reconciliation-backend/internal/models"
)

// Store is the full record store: batches, transactions, invoices and
// reconciliation logs.
type Store interface {
	CreateBatch(ctx context.Context, batch *models.UploadBatch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*models.UploadBatch, error)
	InsertTransactions(ctx context.Context, txs []*models.Transaction) error
	UpdateTransaction(ctx context.Context, tx *models.Transaction, columns ...string) error
	MarkReported(ctx context.Context, ids []uuid.UUID) error
	CompleteBatches(ctx context.Context, ids []uuid.UUID, at time.Time) error
	ListTransactions(ctx context.Context, batchID uuid.UUID, status, cursor string, limit int) ([]models.Transaction, string, bool, error)

	CreateInvoice(ctx context.Context, inv *models.Invoice) (bool, error)
	FindByInvoiceID(ctx context.Context, key string) (*models.Invoice, error)
	FindByAmount(ctx context.Context, amount decimal.Decimal) ([]models.Invoice, error)
	SearchInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error)

	InsertLog(ctx context.Context, entry *models.ReconciliationLog) error
	RecentLogs(ctx context.Context, limit int) ([]models.ReconciliationLog, error)
}

// SQLStore combines the gorm repositories over one database handle.
type SQLStore struct {
	*TransactionRepository
	*InvoiceRepository
	*LogRepository
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{
		TransactionRepository: NewTransactionRepository(db),
		InvoiceRepository:     NewInvoiceRepository(db),
		LogRepository:         NewLogRepository(db),
	}
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
