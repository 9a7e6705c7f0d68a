package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Lifecycle stages a transaction moves through during one pipeline run.
const (
	StageExtracted   = "extracted"
	StageMatched     = "matched"
	StageCategorized = "categorized"
	StageChecked     = "checked"
	StageReported    = "reported"
)

// Match statuses written by the matching stage.
const (
	StatusMatched   = "MATCHED"
	StatusUnmatched = "UNMATCHED"
)

// Discrepancy severities written by the detection stage.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// Result columns owned by each stage. A stage writes back only its own
// columns, so a partial record leaves earlier results in place.
var (
	MatchColumns       = []string{"matched_invoice_id", "match_score", "status", "justification", "stage"}
	CategoryColumns    = []string{"category", "gl_code", "gst_rate", "stage"}
	DiscrepancyColumns = []string{"flags", "discrepancy_justification", "severity", "stage"}
)

// DateLayout is the layout transaction dates are rendered with.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
}

// Transaction is a bank/ledger line being reconciled. Columns other than the
// ones modelled here are kept in Fields and flattened back into the JSON form.
type Transaction struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"_id"`
	UploadBatchID   *uuid.UUID        `gorm:"type:uuid;index" json:"upload_batch_id,omitempty"`
	TransactionRef  string            `gorm:"index" json:"transaction_id,omitempty"`
	TransactionDate *time.Time        `gorm:"column:transaction_date" json:"-"`
	Amount          decimal.Decimal   `gorm:"type:numeric;index" json:"amount"`
	Fields          datatypes.JSONMap `json:"-"`
	Stage           string            `gorm:"index" json:"stage,omitempty"`

	MatchedInvoiceID *string  `json:"matched_invoice_id,omitempty"`
	MatchScore       *float64 `json:"match_score,omitempty"`
	Status           string   `gorm:"index" json:"status,omitempty"`
	Justification    string   `json:"justification,omitempty"`

	Category string   `json:"category,omitempty"`
	GLCode   string   `json:"gl_code,omitempty"`
	GSTRate  *float64 `json:"gst_rate,omitempty"`

	Flags                    datatypes.JSONSlice[string] `json:"flags,omitempty"`
	DiscrepancyJustification string                      `json:"discrepancy_justification,omitempty"`
	Severity                 string                      `json:"severity,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// transactionAlias drops the custom JSON methods so the tagged fields can be
// encoded and decoded with the default rules.
type transactionAlias Transaction

// typedKeys are decoded into struct fields; every other key lands in Fields.
var typedKeys = []string{
	"upload_batch_id",
	"transaction_id",
	"stage",
	"matched_invoice_id",
	"match_score",
	"status",
	"justification",
	"category",
	"gl_code",
	"gst_rate",
	"flags",
	"discrepancy_justification",
	"severity",
}

// MarshalJSON flattens Fields alongside the typed columns.
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Fields)+len(typedKeys))
	for k, v := range t.Fields {
		out[k] = v
	}

	typed, err := json.Marshal(transactionAlias(t))
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(typed, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}

	if t.TransactionDate != nil {
		out["date"] = t.TransactionDate.Format(DateLayout)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts an arbitrary JSON object. The identifier, amount and
// date are parsed leniently; unknown keys are preserved in Fields.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Transaction

	typed := make(map[string]json.RawMessage)
	for _, key := range typedKeys {
		if v, ok := raw[key]; ok {
			typed[key] = v
			delete(raw, key)
		}
	}
	if len(typed) > 0 {
		buf, err := json.Marshal(typed)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(buf, (*transactionAlias)(&out)); err != nil {
			return fmt.Errorf("transaction: %w", err)
		}
	}

	if v, ok := raw["_id"]; ok {
		delete(raw, "_id")
		id, err := decodeID(v)
		if err != nil {
			return fmt.Errorf("transaction _id: %w", err)
		}
		out.ID = id
	}

	if v, ok := raw["amount"]; ok {
		delete(raw, "amount")
		amount, err := decodeAmount(v)
		if err != nil {
			return fmt.Errorf("transaction amount: %w", err)
		}
		out.Amount = amount
	}

	if v, ok := raw["date"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if d, ok := ParseDate(s); ok {
				out.TransactionDate = &d
				delete(raw, "date")
			}
		}
	}

	if len(raw) > 0 {
		out.Fields = make(datatypes.JSONMap, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("transaction field %q: %w", k, err)
			}
			out.Fields[k] = val
		}
	}

	*t = out
	return nil
}

// Field returns a free-form column value, or nil.
func (t *Transaction) Field(key string) any {
	if t.Fields == nil {
		return nil
	}
	return t.Fields[key]
}

// Description returns the best human readable label for the transaction,
// used when ranking invoice candidates by name.
func (t *Transaction) Description() string {
	for _, key := range []string{"description", "party", "narration", "payee", "name"} {
		if s, ok := t.Field(key).(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// IsMatched reports whether the matching stage found an invoice.
func (t *Transaction) IsMatched() bool {
	return t.Status == StatusMatched
}

// IsFlagged reports whether the detection stage raised any flag.
func (t *Transaction) IsFlagged() bool {
	return len(t.Flags) > 0
}

// ParseDate tries the date layouts found in bank exports.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func decodeID(v json.RawMessage) (uuid.UUID, error) {
	if bytes.Equal(v, []byte("null")) {
		return uuid.Nil, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return uuid.Nil, err
	}
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func decodeAmount(v json.RawMessage) (decimal.Decimal, error) {
	if bytes.Equal(v, []byte("null")) {
		return decimal.Zero, nil
	}
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return decimal.Zero, err
		}
		return ParseAmount(s)
	}
	return decimal.NewFromString(string(v))
}

// ParseAmount parses amounts written with thousands separators or a currency
// prefix. An empty string is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "₹$€£")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
