package database

import (
	"fmt"

	"stocktrack-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres and brings the schema up to date.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database connected, migration complete")
	return db, nil
}

// Migrate creates the tables plus the constraints AutoMigrate cannot express.
// It works on any dialect that supports partial indexes (postgres, sqlite).
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Department{},
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.InventoryLog{},
		&models.StockAlert{},
		&models.ActivityLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// At most one open (alert_sent = false) alert per product.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_alerts_open
		ON stock_alerts (product_id)
		WHERE alert_sent = false
	`).Error; err != nil {
		return fmt.Errorf("create open alert index: %w", err)
	}

	return nil
}
