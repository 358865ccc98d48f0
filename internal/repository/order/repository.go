package order

import (
	"context"
	"time"

	"webshop/internal/domain"
)

// PlaceInput carries a validated checkout: the item snapshot and the cart version it was taken from.
type PlaceInput struct {
	UserID          string
	CartID          string
	CartVersion     time.Time
	OrderNumber     string
	Items           []domain.OrderItem
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
	TotalCents      int64
}

type Repository interface {
	// Place writes the order, decrements stock and empties the cart in a single transaction.
	Place(ctx context.Context, in PlaceInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error)
	// UpdateStatus applies a status transition and returns the order with its previous status.
	UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, domain.OrderStatus, error)
	UpdatePaymentStatus(ctx context.Context, id string, next domain.PaymentStatus) (*domain.Order, domain.PaymentStatus, error)
}
