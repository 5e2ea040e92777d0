package stock

import (
	"context"
	"errors"
	"math"
	"time"

	"stocktrack-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ledgerEntry struct {
	productID       uuid.UUID
	actorID         uuid.UUID
	changeType      models.ChangeType
	before          int
	after           int
	reason          *string
	referenceNumber *string
	version         int64
	at              time.Time
}

// appendLedger inserts one immutable movement record. It must run in the
// same transaction as the quantity write it describes.
func appendLedger(tx *gorm.DB, le ledgerEntry) (*models.InventoryLog, error) {
	entry := &models.InventoryLog{
		ProductID:       le.productID,
		UserID:          le.actorID,
		ChangeType:      le.changeType,
		QuantityChanged: le.after - le.before,
		QuantityBefore:  le.before,
		QuantityAfter:   le.after,
		Reason:          le.reason,
		ReferenceNumber: le.referenceNumber,
		Version:         le.version,
		Timestamp:       le.at,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, &TransactionError{Op: "write inventory log", Err: err}
	}
	return entry, nil
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func newPagination(page, limit int, total int64) Pagination {
	return Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

// normalizePage clamps paging input to page >= 1 and 1 <= limit <= 100.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

type HistoryEntry struct {
	models.InventoryLog
	UserName string `json:"userName"`
}

type HistoryPage struct {
	History    []HistoryEntry `json:"history"`
	Pagination Pagination     `json:"pagination"`
}

// History lists a product's movements, newest first. Inactive products keep
// their history.
func (e *Engine) History(ctx context.Context, productID uuid.UUID, page, limit int) (*HistoryPage, error) {
	page, limit = normalizePage(page, limit)
	db := e.db.WithContext(ctx)

	if err := db.Select("id").First(&models.Product{}, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "product", ID: productID}
		}
		return nil, &TransactionError{Op: "load product", Err: err}
	}

	var total int64
	if err := db.Model(&models.InventoryLog{}).Where("product_id = ?", productID).Count(&total).Error; err != nil {
		return nil, &TransactionError{Op: "count inventory logs", Err: err}
	}

	var logs []models.InventoryLog
	if err := db.Preload("User").
		Where("product_id = ?", productID).
		Order("timestamp DESC, version DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&logs).Error; err != nil {
		return nil, &TransactionError{Op: "list inventory logs", Err: err}
	}

	out := &HistoryPage{History: make([]HistoryEntry, 0, len(logs)), Pagination: newPagination(page, limit, total)}
	for _, l := range logs {
		name := ""
		if l.User != nil {
			name = l.User.Name
		}
		out.History = append(out.History, HistoryEntry{InventoryLog: l, UserName: name})
	}
	return out, nil
}

// Reconciliation compares a product's stored quantity with its ledger.
type Reconciliation struct {
	ProductID uuid.UUID `json:"productId"`
	Entries   int       `json:"entries"`
	// LedgerSum is the sum of every realized delta, replayed from zero.
	LedgerSum int `json:"ledgerSum"`
	// Opening is the quantity before the first recorded movement.
	Opening  int  `json:"opening"`
	Quantity int  `json:"quantity"`
	Chained  bool `json:"chained"`
	// Breaks lists versions whose quantityBefore does not match the previous
	// entry's quantityAfter.
	Breaks     []int64 `json:"breaks,omitempty"`
	Consistent bool    `json:"consistent"`
}

// Reconcile replays the ledger in version order.
func (e *Engine) Reconcile(ctx context.Context, productID uuid.UUID) (*Reconciliation, error) {
	db := e.db.WithContext(ctx)

	var p models.Product
	if err := db.First(&p, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "product", ID: productID}
		}
		return nil, &TransactionError{Op: "load product", Err: err}
	}

	var logs []models.InventoryLog
	if err := db.Where("product_id = ?", productID).Order("version ASC").Find(&logs).Error; err != nil {
		return nil, &TransactionError{Op: "list inventory logs", Err: err}
	}

	return replay(p, logs), nil
}

func replay(p models.Product, logs []models.InventoryLog) *Reconciliation {
	r := &Reconciliation{ProductID: p.ID, Entries: len(logs), Quantity: p.Quantity, Chained: true, Opening: p.Quantity}
	if len(logs) > 0 {
		r.Opening = logs[0].QuantityBefore
	}

	for i, l := range logs {
		r.LedgerSum += l.QuantityChanged
		if i > 0 && logs[i-1].QuantityAfter != l.QuantityBefore {
			r.Chained = false
			r.Breaks = append(r.Breaks, l.Version)
		}
	}

	last := r.Opening
	if len(logs) > 0 {
		last = logs[len(logs)-1].QuantityAfter
	}
	r.Consistent = r.Chained && r.Opening+r.LedgerSum == p.Quantity && last == p.Quantity
	return r
}
