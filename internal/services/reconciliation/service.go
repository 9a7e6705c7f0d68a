package reconciliation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"

	"agentic-reconciliation-backend/internal/ai"
	"agentic-reconciliation-backend/internal/models"
)

var (
	// ErrGeneratorRequired is returned when the service is built without an LLM.
	ErrGeneratorRequired = errors.New("reconciliation: generator is required")

	// ErrStoreRequired is returned when a record store is missing.
	ErrStoreRequired = errors.New("reconciliation: transaction, invoice and log stores are required")
)

// TransactionStore persists transactions and the batches they arrive in.
type TransactionStore interface {
	CreateBatch(ctx context.Context, batch *models.UploadBatch) error
	InsertTransactions(ctx context.Context, txs []*models.Transaction) error
	UpdateTransaction(ctx context.Context, tx *models.Transaction, columns ...string) error
	MarkReported(ctx context.Context, ids []uuid.UUID) error
	CompleteBatches(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// InvoiceStore is the read side of invoice reference data.
type InvoiceStore interface {
	FindByInvoiceID(ctx context.Context, key string) (*models.Invoice, error)
	FindByAmount(ctx context.Context, amount decimal.Decimal) ([]models.Invoice, error)
}

// LogStore records approval outcomes.
type LogStore interface {
	InsertLog(ctx context.Context, entry *models.ReconciliationLog) error
}

// ContextRetriever supplies supporting text for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Deps are the collaborators every stage shares. Retriever is optional.
type Deps struct {
	Transactions TransactionStore
	Invoices     InvoiceStore
	Logs         LogStore
	Retriever    ContextRetriever
	Generator    ai.Generator
}

// Service runs the five reconciliation stages.
type Service struct {
	txs       TransactionStore
	invoices  InvoiceStore
	logs      LogStore
	retriever ContextRetriever
	generator ai.Generator

	pool          *ants.Pool
	maxCandidates int
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithConcurrency bounds how many records a stage processes at once.
// Values below 2 keep processing sequential, which is the default.
func WithConcurrency(n int) Option {
	return func(s *Service) error {
		if s.pool != nil {
			s.pool.Release()
			s.pool = nil
		}
		if n < 2 {
			return nil
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithMaxCandidates sets how many ranked invoices go into the match prompt.
// Default is 3.
func WithMaxCandidates(n int) Option {
	return func(s *Service) error {
		if n < 0 {
			n = 0
		}
		s.maxCandidates = n
		return nil
	}
}

// WithClock replaces time.Now, for reports and batch completion times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates the stage service.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	if deps.Transactions == nil || deps.Invoices == nil || deps.Logs == nil {
		return nil, ErrStoreRequired
	}
	if deps.Generator == nil {
		return nil, ErrGeneratorRequired
	}

	s := &Service{
		txs:           deps.Transactions,
		invoices:      deps.Invoices,
		logs:          deps.Logs,
		retriever:     deps.Retriever,
		generator:     deps.Generator,
		maxCandidates: 3,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        slog.Default().With("component", "reconciliation"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}
	return s, nil
}

// Release frees the worker pool, if any.
func (s *Service) Release() {
	if s.pool != nil {
		s.pool.Release()
		s.pool = nil
	}
}
