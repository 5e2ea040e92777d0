package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is owned by the catalog. Stock movements only ever write Quantity,
// Version and UpdatedAt.
type Product struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string     `gorm:"size:200;not null" json:"name"`
	SKU               string     `gorm:"column:sku;size:100;not null;uniqueIndex" json:"sku"`
	CategoryID        *uuid.UUID `gorm:"type:uuid;index" json:"categoryId"`
	Category          *Category  `json:"category,omitempty"`
	Quantity          int        `gorm:"not null;default:0;check:chk_products_quantity,quantity >= 0" json:"quantity"`
	LowStockThreshold int        `gorm:"not null;check:chk_products_threshold,low_stock_threshold >= 0" json:"lowStockThreshold"`
	IsActive          bool       `gorm:"not null;index" json:"isActive"`
	// Version is bumped by every stock movement and orders the ledger.
	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsLowStock reports whether the quantity is at or below the threshold.
func (p *Product) IsLowStock() bool {
	return p.Quantity <= p.LowStockThreshold
}
