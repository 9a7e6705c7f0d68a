// Package invoices creates and imports invoice reference data and keeps
// the invoice knowledge index in step with the record store.
package invoices

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"agentic-reconciliation-backend/internal/models"
)

// ErrInvalidInvoice is returned for an invoice without a customer or a
// positive amount, or with an unreadable due date.
var ErrInvalidInvoice = errors.New("invalid invoice")

// Store persists invoices, ignoring duplicates by invoice_id.
type Store interface {
	CreateInvoice(ctx context.Context, inv *models.Invoice) (bool, error)
}

// Indexer makes invoice descriptions searchable by the matcher.
type Indexer interface {
	AddDocuments(ctx context.Context, texts ...string) error
}

// Input is an invoice as submitted by a client.
type Input struct {
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"` // optional
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	DueDate       string          `json:"due_date"`
	Fields        map[string]any  `json:"fields"`
}

type Service struct {
	store   Store
	indexer Indexer
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates the invoice service. indexer may be nil.
func NewService(store Store, indexer Indexer) *Service {
	return &Service{
		store:   store,
		indexer: indexer,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default().With("component", "invoices"),
	}
}

// Create validates and stores one invoice, indexing it when it is new. It
// reports whether the invoice was written; a duplicate invoice_id is not.
func (s *Service) Create(ctx context.Context, in Input) (*models.Invoice, bool, error) {
	inv, err := s.build(in)
	if err != nil {
		return nil, false, err
	}

	created, err := s.store.CreateInvoice(ctx, inv)
	if err != nil {
		return nil, false, fmt.Errorf("creating invoice: %w", err)
	}
	if created && s.indexer != nil {
		if err := s.indexer.AddDocuments(ctx, Describe(inv)); err != nil {
			return nil, false, fmt.Errorf("indexing invoice: %w", err)
		}
	}
	return inv, created, nil
}

func (s *Service) build(in Input) (*models.Invoice, error) {
	name := strings.TrimSpace(in.CustomerName)
	if name == "" || !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: customer name and a positive amount are required", ErrInvalidInvoice)
	}

	var due *time.Time
	if ds := strings.TrimSpace(in.DueDate); ds != "" {
		d, ok := models.ParseDate(ds)
		if !ok {
			return nil, fmt.Errorf("%w: unreadable due date %q", ErrInvalidInvoice, ds)
		}
		due = &d
	}

	// Generate invoice number if missing
	number := strings.TrimSpace(in.InvoiceNumber)
	if number == "" {
		number = uuid.New().String()
	}
	invoiceID := strings.TrimSpace(in.InvoiceID)
	if invoiceID == "" {
		invoiceID = number
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = "sent"
	}

	var fields datatypes.JSONMap
	if len(in.Fields) > 0 {
		fields = datatypes.JSONMap(in.Fields)
	}

	return &models.Invoice{
		ID:            uuid.New(),
		InvoiceID:     invoiceID,
		InvoiceNumber: number,
		CustomerName:  name,
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		Amount:        in.Amount,
		Status:        status,
		DueDate:       due,
		Fields:        fields,
		CreatedAt:     s.now(),
	}, nil
}

// ImportCSV creates an invoice per data row, matching columns by header
// name. Rows that fail validation are skipped. It returns how many
// invoices were new.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// Read header
	headerRow, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("%w: cannot read CSV header: %v", ErrInvalidInvoice, err)
	}
	col := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	inserted := 0
	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("skipping unreadable row", "row", rowNum, "error", err)
			continue
		}
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		amount, err := models.ParseAmount(get("amount"))
		if err != nil {
			s.logger.Warn("skipping row with invalid amount", "row", rowNum, "amount", get("amount"))
			continue
		}

		_, created, err := s.Create(ctx, Input{
			InvoiceID:     get("invoice_id"),
			InvoiceNumber: get("invoice_number"),
			CustomerName:  get("customer_name"),
			CustomerEmail: get("customer_email"),
			Amount:        amount,
			Status:        get("status"),
			DueDate:       get("due_date"),
		})
		if errors.Is(err, ErrInvalidInvoice) {
			s.logger.Warn("skipping invalid row", "row", rowNum, "error", err)
			continue
		}
		if err != nil {
			return inserted, err
		}
		if created {
			inserted++
		}
	}

	s.logger.Info("invoices imported", "inserted", inserted)
	return inserted, nil
}

// Describe renders an invoice as indexable text.
func Describe(inv *models.Invoice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s", inv.InvoiceID)
	if inv.InvoiceNumber != "" && inv.InvoiceNumber != inv.InvoiceID {
		fmt.Fprintf(&b, " (number %s)", inv.InvoiceNumber)
	}
	fmt.Fprintf(&b, " for %s, amount %s, status %s", inv.CustomerName, inv.Amount.String(), inv.Status)
	if inv.DueDate != nil {
		fmt.Fprintf(&b, ", due %s", inv.DueDate.Format(models.DateLayout))
	}
	return b.String()
}
