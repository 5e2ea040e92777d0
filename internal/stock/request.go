package stock

import (
	"time"
	"unicode/utf8"

	"stocktrack-backend/internal/models"

	"github.com/google/uuid"
)

const (
	MaxBulkItems        = 100
	MaxReasonLength     = 500
	MaxReferenceLength  = 100
	MaxQuantityMovement = 1_000_000_000
)

type AdjustRequest struct {
	ProductID       string  `json:"productId"`
	ChangeType      string  `json:"changeType"`
	QuantityChanged int     `json:"quantityChanged"`
	Reason          *string `json:"reason,omitempty"`
	ReferenceNumber *string `json:"referenceNumber,omitempty"`
}

type BulkAdjustRequest struct {
	Updates []AdjustRequest `json:"updates"`
}

type AdjustResult struct {
	ProductID       uuid.UUID         `json:"productId"`
	ProductName     string            `json:"productName"`
	QuantityBefore  int               `json:"quantityBefore"`
	QuantityAfter   int               `json:"quantityAfter"`
	QuantityChanged int               `json:"quantityChanged"`
	ChangeType      models.ChangeType `json:"changeType"`
}

type BulkItemResult struct {
	Index int `json:"index"`
	AdjustResult
	Success bool `json:"success"`
}

type ItemError struct {
	Index     int    `json:"index"`
	ProductID string `json:"productId"`
	Message   string `json:"error"`
	Err       error  `json:"-"`
}

type BulkResult struct {
	Results []BulkItemResult `json:"results"`
	Errors  []ItemError      `json:"errors,omitempty"`
}

// Validate checks shape, type and range. It returns *ValidationError or
// *InvalidChangeTypeError and never reads storage.
func (r AdjustRequest) Validate() error {
	_, err := r.parse()
	return err
}

type movementRequest struct {
	productID       uuid.UUID
	changeType      models.ChangeType
	delta           int
	reason          *string
	referenceNumber *string
}

func (r AdjustRequest) parse() (movementRequest, error) {
	var m movementRequest

	if r.ProductID == "" {
		return m, invalid("productId", "productId is required")
	}
	id, err := uuid.Parse(r.ProductID)
	if err != nil || id == uuid.Nil {
		return m, invalid("productId", "productId must be a valid UUID")
	}

	if r.ChangeType == "" {
		return m, invalid("changeType", "changeType is required")
	}
	ct := models.ChangeType(r.ChangeType)
	if !ct.Valid() {
		return m, &InvalidChangeTypeError{ChangeType: r.ChangeType}
	}

	// Zero is accepted and records a movement that leaves quantity unchanged.
	switch {
	case r.QuantityChanged < 0 && ct != models.ChangeAdjustment:
		return m, invalid("quantityChanged", "quantityChanged can only be negative for adjustments")
	case r.QuantityChanged > MaxQuantityMovement || r.QuantityChanged < -MaxQuantityMovement:
		return m, invalid("quantityChanged", "quantityChanged must be between -%d and %d", MaxQuantityMovement, MaxQuantityMovement)
	}

	if r.Reason != nil && utf8.RuneCountInString(*r.Reason) > MaxReasonLength {
		return m, invalid("reason", "reason must be at most %d characters", MaxReasonLength)
	}
	if r.ReferenceNumber != nil && utf8.RuneCountInString(*r.ReferenceNumber) > MaxReferenceLength {
		return m, invalid("referenceNumber", "referenceNumber must be at most %d characters", MaxReferenceLength)
	}

	m = movementRequest{
		productID:       id,
		changeType:      ct,
		delta:           r.QuantityChanged,
		reason:          r.Reason,
		referenceNumber: r.ReferenceNumber,
	}
	return m, nil
}

// Validate checks the envelope only. Item level problems are reported per
// item by BulkAdjust so the rest of the batch can proceed.
func (r BulkAdjustRequest) Validate() error {
	if len(r.Updates) == 0 {
		return invalid("updates", "updates must contain at least 1 item")
	}
	if len(r.Updates) > MaxBulkItems {
		return invalid("updates", "updates must contain at most %d items", MaxBulkItems)
	}
	return nil
}

// movement is a movement that has been applied inside a transaction.
type movement struct {
	product    models.Product
	changeType models.ChangeType
	before     int
	after      int
	logID      uuid.UUID
	at         time.Time
}

func (m movement) changed() int {
	return m.after - m.before
}

func (m movement) result() AdjustResult {
	return AdjustResult{
		ProductID:       m.product.ID,
		ProductName:     m.product.Name,
		QuantityBefore:  m.before,
		QuantityAfter:   m.after,
		QuantityChanged: m.changed(),
		ChangeType:      m.changeType,
	}
}
