package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocktrack-backend/internal/models"
	"stocktrack-backend/internal/notify"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// IssuedAlert is a low stock alert created by CheckLowStock.
type IssuedAlert struct {
	Alert    models.StockAlert
	Product  models.Product
	Category string
}

func (a *IssuedAlert) event() notify.LowStockAlert {
	return notify.LowStockAlert{
		AlertID:         a.Alert.ID,
		ProductID:       a.Product.ID,
		ProductName:     a.Product.Name,
		SKU:             a.Product.SKU,
		CurrentQuantity: a.Product.Quantity,
		Threshold:       a.Product.LowStockThreshold,
		Category:        a.Category,
		Message:         a.Alert.Message,
	}
}

func lowStockMessage(p models.Product) string {
	return fmt.Sprintf("Low stock alert: %s (SKU: %s) has %d units remaining (threshold: %d)",
		p.Name, p.SKU, p.Quantity, p.LowStockThreshold)
}

// CheckLowStock re-reads the committed product and opens an alert when it is
// active and at or below its threshold, unless an open alert already exists.
// It returns nil, nil when no new alert was needed.
func (e *Engine) CheckLowStock(ctx context.Context, productID uuid.UUID) (*IssuedAlert, error) {
	ctx, span := e.tracer.Start(ctx, "stock.check_low_stock", trace.WithAttributes(
		attribute.String("product.id", productID.String()),
	))
	defer span.End()

	var issued *IssuedAlert
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// No row lock is taken here. Concurrent checks for the same product
		// are deduplicated by the open-alert index below.
		var p models.Product
		err := tx.Where("id = ? AND is_active = ?", productID, true).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !p.IsLowStock() {
			return nil
		}

		var open int64
		if err := tx.Model(&models.StockAlert{}).
			Where("product_id = ? AND alert_sent = ?", productID, false).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return nil
		}

		alert := models.StockAlert{
			ProductID: productID,
			AlertType: models.AlertTypeLowStock,
			Message:   lowStockMessage(p),
			CreatedAt: e.now(),
		}
		if err := tx.Create(&alert).Error; err != nil {
			// The open-alert index caught a concurrent insert; the
			// transaction is aborted on Postgres so it must roll back.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlertExists
			}
			return err
		}

		category := ""
		if p.CategoryID != nil {
			var c models.Category
			if err := tx.Select("name").First(&c, "id = ?", *p.CategoryID).Error; err == nil {
				category = c.Name
			}
		}
		issued = &IssuedAlert{Alert: alert, Product: p, Category: category}
		return nil
	})
	if errors.Is(err, errAlertExists) {
		err, issued = nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &TransactionError{Op: "check low stock", Err: err}
	}

	span.SetAttributes(attribute.Bool("stock.alert_issued", issued != nil))
	return issued, nil
}

var errAlertExists = errors.New("open alert already exists")

type AlertFilter struct {
	UnreadOnly bool
	Page       int
	Limit      int
}

// AlertView is an alert joined with its product's current stock.
type AlertView struct {
	ID                uuid.UUID `json:"id"`
	ProductID         uuid.UUID `json:"productId"`
	AlertType         string    `json:"alertType"`
	Message           string    `json:"message"`
	IsRead            bool      `json:"isRead"`
	AlertSent         bool      `json:"alertSent"`
	CreatedAt         time.Time `json:"createdAt"`
	ProductName       string    `json:"productName"`
	SKU               string    `gorm:"column:sku" json:"sku"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"lowStockThreshold"`
}

type AlertPage struct {
	Alerts     []AlertView `json:"alerts"`
	Pagination Pagination  `json:"pagination"`
}

func (e *Engine) ListAlerts(ctx context.Context, f AlertFilter) (*AlertPage, error) {
	page, limit := normalizePage(f.Page, f.Limit)

	base := func() *gorm.DB {
		q := e.db.WithContext(ctx).
			Table("stock_alerts AS sa").
			Joins("JOIN products AS p ON p.id = sa.product_id")
		if f.UnreadOnly {
			q = q.Where("sa.is_read = ?", false)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, &TransactionError{Op: "count alerts", Err: err}
	}

	alerts := []AlertView{}
	if err := base().
		Select("sa.id, sa.product_id, sa.alert_type, sa.message, sa.is_read, sa.alert_sent, sa.created_at, " +
			"p.name AS product_name, p.sku, p.quantity, p.low_stock_threshold").
		Order("sa.created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(&alerts).Error; err != nil {
		return nil, &TransactionError{Op: "list alerts", Err: err}
	}

	return &AlertPage{Alerts: alerts, Pagination: newPagination(page, limit, total)}, nil
}

// AcknowledgeAlert marks an alert read. It does not close it: the alert stays
// open, and keeps suppressing new alerts, until ResolveAlert.
func (e *Engine) AcknowledgeAlert(ctx context.Context, alertID uuid.UUID) (*models.StockAlert, error) {
	return e.setAlertFlag(ctx, alertID, "is_read")
}

// ResolveAlert closes an alert so the next breach raises a new one.
func (e *Engine) ResolveAlert(ctx context.Context, alertID uuid.UUID) (*models.StockAlert, error) {
	return e.setAlertFlag(ctx, alertID, "alert_sent")
}

func (e *Engine) setAlertFlag(ctx context.Context, alertID uuid.UUID, column string) (*models.StockAlert, error) {
	db := e.db.WithContext(ctx)

	res := db.Model(&models.StockAlert{}).Where("id = ?", alertID).Update(column, true)
	if res.Error != nil {
		return nil, &TransactionError{Op: "update alert", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return nil, &NotFoundError{Resource: "alert", ID: alertID}
	}

	var alert models.StockAlert
	if err := db.First(&alert, "id = ?", alertID).Error; err != nil {
		return nil, &TransactionError{Op: "load alert", Err: err}
	}
	return &alert, nil
}
