package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChangeType string

const (
	ChangeRestock    ChangeType = "restock"
	ChangeSale       ChangeType = "sale"
	ChangeAdjustment ChangeType = "adjustment"
	ChangeReturn     ChangeType = "return"
)

// ChangeTypes lists every accepted movement kind.
var ChangeTypes = []ChangeType{ChangeRestock, ChangeSale, ChangeAdjustment, ChangeReturn}

func (t ChangeType) Valid() bool {
	switch t {
	case ChangeRestock, ChangeSale, ChangeAdjustment, ChangeReturn:
		return true
	}
	return false
}

var ErrLedgerImmutable = errors.New("inventory log entries cannot be changed")

// InventoryLog is one movement in a product's stock ledger. QuantityChanged is
// the delta actually applied, so QuantityAfter-QuantityBefore always equals it.
type InventoryLog struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID       uuid.UUID  `gorm:"type:uuid;index:idx_inventory_logs_product_version,priority:1;not null" json:"productId"`
	Product         *Product   `json:"-"`
	UserID          uuid.UUID  `gorm:"type:uuid;index;not null" json:"userId"`
	User            *User      `json:"-"`
	ChangeType      ChangeType `gorm:"size:20;not null;check:chk_inventory_logs_change_type,change_type IN ('restock','sale','adjustment','return')" json:"changeType"`
	QuantityChanged int        `gorm:"not null" json:"quantityChanged"`
	QuantityBefore  int        `gorm:"not null" json:"quantityBefore"`
	QuantityAfter   int        `gorm:"not null" json:"quantityAfter"`
	Reason          *string    `gorm:"type:text" json:"reason,omitempty"`
	ReferenceNumber *string    `gorm:"size:100" json:"referenceNumber,omitempty"`
	Version         int64      `gorm:"index:idx_inventory_logs_product_version,priority:2;not null" json:"version"`
	Timestamp       time.Time  `gorm:"index;not null" json:"timestamp"`
}

func (l *InventoryLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now()
	}
	return nil
}

func (l *InventoryLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrLedgerImmutable
}

func (l *InventoryLog) BeforeDelete(tx *gorm.DB) error {
	return ErrLedgerImmutable
}
