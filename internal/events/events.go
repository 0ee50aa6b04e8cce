package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventPurchaseCreated    = "purchase_created"
	EventPurchaseFinalized  = "purchase_finalized"
	EventPurchaseCanceled   = "purchase_canceled"
	EventDeliveryProcessed  = "delivery_processed"
	EventStocktakeFinalized = "stocktake_finalized"
	EventOrderPlaced        = "order_placed"
	EventStockLow           = "stock_low"
)

// PurchaseEventPayload is the minimal purchase snapshot for event
// consumers.
type PurchaseEventPayload struct {
	PurchaseID string          `json:"purchase_id"`
	AccountID  string          `json:"account_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	Items      int             `json:"items"`
}

// DeliveryEventPayload describes a processed delivery.
type DeliveryEventPayload struct {
	DeliveryID int64  `json:"delivery_id"`
	Supplier   string `json:"supplier"`
	Items      int    `json:"items"`
}

// StockLowPayload fires when a product drops below its base stock
// level.
type StockLowPayload struct {
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"`
	Level     int64  `json:"level"`
}

// OrderEventPayload describes an order sent to a supplier.
type OrderEventPayload struct {
	Supplier string `json:"supplier"`
	OrderID  string `json:"order_id"`
	Lines    int    `json:"lines"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
