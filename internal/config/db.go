package config

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"agentic-reconciliation-backend/internal/models"
)

// InitDB connects to Postgres and migrates every persisted model.
func InitDB(cfg DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables behind the record store.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.UploadBatch{},
		&models.Transaction{},
		&models.Invoice{},
		&models.ReconciliationLog{},
	); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}
