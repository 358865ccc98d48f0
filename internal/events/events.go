// Package events publishes order lifecycle notifications.
package events

import (
	"context"
	"time"

	"webshop/internal/domain"
)

const (
	TypeOrderCreated        = "order.created"
	TypeOrderStatusChanged  = "order.status_changed"
	TypeOrderPaymentChanged = "order.payment_changed"
)

// OrderEvent is the JSON body published for every order change. Type doubles as the routing key.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	Previous      string    `json:"previous,omitempty"`
	TotalCents    int64     `json:"totalCents"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

func OrderCreated(o domain.Order) OrderEvent {
	return newEvent(TypeOrderCreated, o, "")
}

func StatusChanged(o domain.Order, previous domain.OrderStatus) OrderEvent {
	return newEvent(TypeOrderStatusChanged, o, string(previous))
}

func PaymentChanged(o domain.Order, previous domain.PaymentStatus) OrderEvent {
	return newEvent(TypeOrderPaymentChanged, o, string(previous))
}

func newEvent(typ string, o domain.Order, previous string) OrderEvent {
	return OrderEvent{
		Type:          typ,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Previous:      previous,
		TotalCents:    o.TotalCents,
		OccurredAt:    time.Now().UTC(),
	}
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, OrderEvent) error { return nil }
