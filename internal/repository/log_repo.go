package repository

import (
	"context"

	"gorm.io/gorm"

	"agentic-reconciliation-backend/internal/models"
)

const defaultLogLimit = 50

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) InsertLog(ctx context.Context, entry *models.ReconciliationLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// RecentLogs returns the newest entries first. limit <= 0 uses the default.
func (r *LogRepository) RecentLogs(ctx context.Context, limit int) ([]models.ReconciliationLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	var logs []models.ReconciliationLog
	err := r.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
