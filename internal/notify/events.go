package notify

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventInventoryUpdate EventType = "inventory_update"
	EventLowStockAlert   EventType = "low_stock_alert"
)

// Event is what operators receive over their notification channel.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`

	// ProductID keys the event on ordered sinks such as Kafka.
	ProductID uuid.UUID `json:"-"`
}

type InventoryUpdate struct {
	ProductID       uuid.UUID `json:"productId"`
	ProductName     string    `json:"productName"`
	SKU             string    `json:"sku"`
	QuantityBefore  int       `json:"quantityBefore"`
	QuantityAfter   int       `json:"quantityAfter"`
	ChangeType      string    `json:"changeType"`
	QuantityChanged int       `json:"quantityChanged"`
	UpdatedBy       string    `json:"updatedBy"`
	Timestamp       time.Time `json:"timestamp"`
}

type LowStockAlert struct {
	AlertID         uuid.UUID `json:"alertId"`
	ProductID       uuid.UUID `json:"productId"`
	ProductName     string    `json:"productName"`
	SKU             string    `json:"sku"`
	CurrentQuantity int       `json:"currentQuantity"`
	Threshold       int       `json:"threshold"`
	Category        string    `json:"category,omitempty"`
	Message         string    `json:"message"`
}

func NewInventoryUpdate(u InventoryUpdate) Event {
	return Event{Type: EventInventoryUpdate, Data: u, ProductID: u.ProductID}
}

func NewLowStockAlert(a LowStockAlert) Event {
	return Event{Type: EventLowStockAlert, Data: a, ProductID: a.ProductID}
}
