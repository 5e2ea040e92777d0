package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const AlertTypeLowStock = "low_stock"

// StockAlert with AlertSent == false is an open alert. The database keeps at
// most one open alert per product through a partial unique index.
type StockAlert struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;index;not null" json:"productId"`
	Product   *Product  `json:"-"`
	AlertType string    `gorm:"size:20;not null" json:"alertType"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	IsRead    bool      `gorm:"not null" json:"isRead"`
	AlertSent bool      `gorm:"not null" json:"alertSent"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *StockAlert) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	if a.AlertType == "" {
		a.AlertType = AlertTypeLowStock
	}
	return nil
}
