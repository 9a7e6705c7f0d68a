package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Invoice struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID     string            `gorm:"uniqueIndex" json:"invoice_id"`
	InvoiceNumber string            `gorm:"index" json:"invoice_number"`
	CustomerName  string            `gorm:"index" json:"customer_name"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	Amount        decimal.Decimal   `gorm:"type:numeric;index" json:"amount"`
	Status        string            `gorm:"index" json:"status"`
	DueDate       *time.Time        `json:"due_date,omitempty"`
	Fields        datatypes.JSONMap `json:"fields,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// IsOpen reports whether the invoice can still receive a payment.
func (i *Invoice) IsOpen() bool {
	return i.Status != "paid"
}
