// Package notify delivers order events to an external sink after the unit of
// work that produced them has committed. Delivery is best-effort.
package notify

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/safar/order-engine/internal/models"
	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

type Event interface {
	EventType() string
	// Key orders messages for partitioned sinks.
	Key() string
}

type Item struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type OrderCreated struct {
	OrderID        int64              `json:"order_id"`
	Total          decimal.Decimal    `json:"total"`
	Status         models.OrderStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	Items          []Item             `json:"items"`
	RecipientEmail string             `json:"recipient_email"`
	RecipientName  string             `json:"recipient_name"`
}

func (OrderCreated) EventType() string { return TypeOrderCreated }
func (e OrderCreated) Key() string     { return strconv.FormatInt(e.OrderID, 10) }

type OrderStatusChanged struct {
	OrderID        int64              `json:"order_id"`
	Total          decimal.Decimal    `json:"total"`
	Status         models.OrderStatus `json:"status"`
	OldStatus      models.OrderStatus `json:"old_status"`
	NewStatus      models.OrderStatus `json:"new_status"`
	Items          []Item             `json:"items"`
	RecipientEmail string             `json:"recipient_email"`
	RecipientName  string             `json:"recipient_name"`
}

func (OrderStatusChanged) EventType() string { return TypeOrderStatusChanged }
func (e OrderStatusChanged) Key() string     { return strconv.FormatInt(e.OrderID, 10) }

func NewOrderCreated(order *models.Order, recipient *models.User) OrderCreated {
	return OrderCreated{
		OrderID:        order.ID,
		Total:          order.Total,
		Status:         order.Status,
		CreatedAt:      order.CreatedAt,
		Items:          itemsOf(order),
		RecipientEmail: recipient.Email,
		RecipientName:  recipient.Username,
	}
}

func NewOrderStatusChanged(order *models.Order, oldStatus models.OrderStatus, recipient *models.User) OrderStatusChanged {
	return OrderStatusChanged{
		OrderID:        order.ID,
		Total:          order.Total,
		Status:         order.Status,
		OldStatus:      oldStatus,
		NewStatus:      order.Status,
		Items:          itemsOf(order),
		RecipientEmail: recipient.Email,
		RecipientName:  recipient.Username,
	}
}

func itemsOf(order *models.Order) []Item {
	items := make([]Item, len(order.Items))
	for i, item := range order.Items {
		items[i] = Item{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return items
}

type envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    Event     `json:"payload"`
}

// Encode wraps an event in the JSON envelope published to message sinks.
func Encode(event Event, now time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		Type:       event.EventType(),
		OccurredAt: now.UTC(),
		Payload:    event,
	})
}
