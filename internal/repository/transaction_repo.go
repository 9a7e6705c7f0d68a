package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agentic-reconciliation-backend/internal/models"
)

const insertBatchSize = 100

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateBatch inserts a new upload batch.
func (r *TransactionRepository) CreateBatch(ctx context.Context, batch *models.UploadBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// GetBatch fetches a single upload batch by ID
func (r *TransactionRepository) GetBatch(ctx context.Context, id uuid.UUID) (*models.UploadBatch, error) {
	var batch models.UploadBatch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// InsertTransactions bulk inserts txs. IDs must already be assigned.
func (r *TransactionRepository) InsertTransactions(ctx context.Context, txs []*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(txs, insertBatchSize).Error
}

// UpdateTransaction writes the named columns of tx, zero values included.
// Every other column keeps its stored value.
func (r *TransactionRepository) UpdateTransaction(ctx context.Context, tx *models.Transaction, columns ...string) error {
	if len(columns) == 0 {
		return ErrNoColumns
	}
	result := r.db.WithContext(ctx).
		Model(tx).
		Select(columns).
		Updates(tx)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkReported moves the given transactions to the terminal stage.
func (r *TransactionRepository) MarkReported(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id IN ?", ids).
		Update("stage", models.StageReported).
		Error
}

// CompleteBatches sets batch status to completed
func (r *TransactionRepository) CompleteBatches(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.UploadBatch{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":       models.BatchStatusCompleted,
			"completed_at": at,
		}).Error
}

// ListTransactions pages through one batch ordered by id. A non-empty
// cursor is the last id of the previous page.
func (r *TransactionRepository) ListTransactions(
	ctx context.Context,
	batchID uuid.UUID,
	status string,
	cursor string,
	limit int,
) ([]models.Transaction, string, bool, error) {
	var txs []models.Transaction
	query := r.db.WithContext(ctx).
		Where("upload_batch_id = ?", batchID).
		Order("id ASC").
		Limit(limit + 1)

	// filter by status
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}

	// filter by cursor
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}

	if err := query.Find(&txs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}
	return txs, nextCursor, hasMore, nil
}
