package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agentic-reconciliation-backend/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// CreateInvoice inserts inv unless its invoice_id already exists.
// It reports whether a row was written.
func (r *InvoiceRepository) CreateInvoice(ctx context.Context, inv *models.Invoice) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_id"}},
			DoNothing: true,
		}).
		Create(inv)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByInvoiceID looks an invoice up by its external id or, failing that,
// its invoice number. LLM answers use either.
func (r *InvoiceRepository) FindByInvoiceID(ctx context.Context, key string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("invoice_id = ? OR invoice_number = ?", key, key).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByAmount returns all invoices with the exact amount
func (r *InvoiceRepository) FindByAmount(ctx context.Context, amount decimal.Decimal) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).Where("amount = ?", amount).Find(&invoices).Error
	return invoices, err
}

// SearchInvoices used for admin manual search with optional filters
func (r *InvoiceRepository) SearchInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	var invoices []models.Invoice

	dbQuery := r.db.WithContext(ctx).Model(&models.Invoice{})

	if filter.Query != "" {
		dbQuery = dbQuery.Where("LOWER(customer_name) LIKE ?", "%"+strings.ToLower(filter.Query)+"%")
	}
	if filter.Amount != nil {
		dbQuery = dbQuery.Where("amount = ?", *filter.Amount)
	}
	if len(filter.Statuses) > 0 {
		dbQuery = dbQuery.Where("status IN ?", filter.Statuses)
	}
	if filter.Limit > 0 {
		dbQuery = dbQuery.Limit(filter.Limit)
	}

	err := dbQuery.Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}

// InvoiceFilter narrows SearchInvoices. Zero fields do not filter.
type InvoiceFilter struct {
	Query    string
	Amount   *decimal.Decimal
	Statuses []string
	Limit    int
}
