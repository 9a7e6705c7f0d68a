package models

import (
	"time"

	"github.com/google/uuid"
)

// Upload batch statuses.
const (
	BatchStatusExtracted = "extracted"
	BatchStatusCompleted = "completed"
)

// UploadBatch groups the transactions extracted from one uploaded file.
type UploadBatch struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Filename          string     `json:"filename"`
	FileType          string     `json:"file_type"`
	TotalTransactions int        `json:"total_transactions"`
	Status            string     `gorm:"index" json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
