package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"stocktrack-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LogOptions struct {
	UserID       uuid.UUID
	UserName     string
	ResourceType string
	ResourceID   *uuid.UUID
	Action       models.ActivityAction
	Details      any
	IPAddress    string
	UserAgent    string
}

// Writer records activity rows. Writes are best effort; callers log the
// returned error and carry on.
type Writer struct {
	db *gorm.DB
}

func NewWriter(db *gorm.DB) *Writer {
	return &Writer{db: db}
}

func (w *Writer) WriteLog(ctx context.Context, opts LogOptions) error {
	// jsonb needs a JSON literal, not an empty string.
	details := "null"
	if opts.Details != nil {
		if b, err := json.Marshal(opts.Details); err == nil {
			details = string(b)
		}
	}

	entry := models.ActivityLog{
		UserID:       opts.UserID,
		UserName:     opts.UserName,
		ResourceType: opts.ResourceType,
		ResourceID:   opts.ResourceID,
		Action:       opts.Action,
		NewValues:    details,
		IPAddress:    opts.IPAddress,
		UserAgent:    truncate(opts.UserAgent, 255),
	}

	if err := w.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("write activity log: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
