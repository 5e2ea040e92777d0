package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityAction string

const (
	ActionUpdateInventory     ActivityAction = "UPDATE_INVENTORY"
	ActionBulkUpdateInventory ActivityAction = "BULK_UPDATE_INVENTORY"
	ActionAcknowledgeAlert    ActivityAction = "ACKNOWLEDGE_ALERT"
	ActionResolveAlert        ActivityAction = "RESOLVE_ALERT"
)

type ActivityLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`

	UserID   uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	UserName string    `gorm:"size:100" json:"userName"` // denormalized

	// "inventory", "stock_alert"
	ResourceType string     `gorm:"size:50;index" json:"resourceType"`
	ResourceID   *uuid.UUID `gorm:"type:uuid;index" json:"resourceId"`

	Action ActivityAction `gorm:"size:40" json:"action"`

	// Request details as JSON.
	NewValues string `gorm:"type:jsonb" json:"newValues"`

	IPAddress string `gorm:"size:64" json:"ipAddress"`
	UserAgent string `gorm:"size:255" json:"userAgent"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	return nil
}
