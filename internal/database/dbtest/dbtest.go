// Package dbtest provides migrated in-memory databases and fixtures for tests.
package dbtest

import (
	"fmt"
	"testing"

	"stocktrack-backend/internal/database"
	"stocktrack-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens a private in-memory SQLite database with the full schema. A single
// connection serializes transactions the way row locks do on Postgres.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Product inserts a product. Zero-valued fields keep their zero value.
func Product(t testing.TB, db *gorm.DB, sku string, quantity, threshold int, active bool) models.Product {
	t.Helper()

	p := models.Product{
		Name:              "Product " + sku,
		SKU:               sku,
		Quantity:          quantity,
		LowStockThreshold: threshold,
		IsActive:          active,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// User inserts a user with the given role and returns it as an actor.
func User(t testing.TB, db *gorm.DB, name string, role models.UserRole) models.Actor {
	t.Helper()

	u := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@stocktrack.test", name, uuid.NewString()[:8]),
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&u).Error)
	return models.Actor{ID: u.ID, Name: u.Name, Role: u.Role, IsActive: true}
}

// Quantity reads a product's stored quantity.
func Quantity(t testing.TB, db *gorm.DB, id uuid.UUID) int {
	t.Helper()

	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.Quantity
}
