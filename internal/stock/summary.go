package stock

import (
	"context"
	"time"

	"stocktrack-backend/internal/models"

	"github.com/google/uuid"
)

// SummaryListLimit caps the recent movement and low stock lists.
const SummaryListLimit = 10

type InventoryStats struct {
	TotalProducts      int64 `json:"totalProducts"`
	ActiveProducts     int64 `json:"activeProducts"`
	LowStockProducts   int64 `json:"lowStockProducts"`
	OutOfStockProducts int64 `json:"outOfStockProducts"`
}

type RecentMovement struct {
	ID              uuid.UUID         `json:"id"`
	ProductID       uuid.UUID         `json:"productId"`
	ProductName     string            `json:"productName"`
	SKU             string            `gorm:"column:sku" json:"sku"`
	UserID          uuid.UUID         `json:"userId"`
	UserName        string            `json:"userName"`
	ChangeType      models.ChangeType `json:"changeType"`
	QuantityChanged int               `json:"quantityChanged"`
	QuantityBefore  int               `json:"quantityBefore"`
	QuantityAfter   int               `json:"quantityAfter"`
	Reason          *string           `json:"reason,omitempty"`
	ReferenceNumber *string           `json:"referenceNumber,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

type LowStockProduct struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	SKU               string     `gorm:"column:sku" json:"sku"`
	Quantity          int        `json:"quantity"`
	LowStockThreshold int        `json:"lowStockThreshold"`
	CategoryID        *uuid.UUID `json:"categoryId"`
	CategoryName      *string    `json:"categoryName"`
}

type Summary struct {
	Stats            InventoryStats    `json:"stats"`
	RecentMovements  []RecentMovement  `json:"recentMovements"`
	LowStockProducts []LowStockProduct `json:"lowStockProducts"`
}

// Summary reports catalog wide stock counts, the latest movements and the
// products closest to running out. Low and out of stock only count active
// products.
func (e *Engine) Summary(ctx context.Context) (*Summary, error) {
	db := e.db.WithContext(ctx)
	out := &Summary{RecentMovements: []RecentMovement{}, LowStockProducts: []LowStockProduct{}}

	if err := db.Model(&models.Product{}).
		Select("COUNT(*) AS total_products, "+
			"COUNT(CASE WHEN is_active = ? THEN 1 END) AS active_products, "+
			"COUNT(CASE WHEN is_active = ? AND quantity <= low_stock_threshold THEN 1 END) AS low_stock_products, "+
			"COUNT(CASE WHEN is_active = ? AND quantity = 0 THEN 1 END) AS out_of_stock_products",
			true, true, true).
		Scan(&out.Stats).Error; err != nil {
		return nil, &TransactionError{Op: "count products", Err: err}
	}

	if err := db.Table("inventory_logs AS il").
		Joins("JOIN products AS p ON p.id = il.product_id").
		Joins("JOIN users AS u ON u.id = il.user_id").
		Select("il.id, il.product_id, p.name AS product_name, p.sku, il.user_id, u.name AS user_name, " +
			"il.change_type, il.quantity_changed, il.quantity_before, il.quantity_after, " +
			"il.reason, il.reference_number, il.timestamp").
		Order("il.timestamp DESC, il.version DESC").
		Limit(SummaryListLimit).
		Scan(&out.RecentMovements).Error; err != nil {
		return nil, &TransactionError{Op: "list recent movements", Err: err}
	}

	// Closest to empty relative to the threshold first; a zero threshold has
	// no ratio and sorts last.
	if err := db.Table("products AS p").
		Joins("LEFT JOIN categories AS c ON c.id = p.category_id").
		Select("p.id, p.name, p.sku, p.quantity, p.low_stock_threshold, p.category_id, c.name AS category_name").
		Where("p.is_active = ? AND p.quantity <= p.low_stock_threshold", true).
		Order("CASE WHEN p.low_stock_threshold = 0 THEN 1 ELSE 0 END, " +
			"CAST(p.quantity AS REAL) / NULLIF(p.low_stock_threshold, 0), p.sku").
		Limit(SummaryListLimit).
		Scan(&out.LowStockProducts).Error; err != nil {
		return nil, &TransactionError{Op: "list low stock products", Err: err}
	}

	return out, nil
}
