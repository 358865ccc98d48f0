package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webshop/internal/domain"
	"webshop/internal/events"
	"webshop/internal/logger"
	"webshop/internal/observability"
	orderrepo "webshop/internal/repository/order"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultPageSize = 10
	placeAttempts   = 5
)

type orderRepo interface {
	Place(ctx context.Context, in orderrepo.PlaceInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, domain.OrderStatus, error)
	UpdatePaymentStatus(ctx context.Context, id string, next domain.PaymentStatus) (*domain.Order, domain.PaymentStatus, error)
}

type cartRepo interface {
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
}

type Service struct {
	orders    orderRepo
	carts     cartRepo
	publisher events.Publisher
	logger    *logger.Logger
	now       func() time.Time
	newNumber func(time.Time) (string, error)
}

func New(orders orderRepo, carts cartRepo, publisher events.Publisher, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		orders:    orders,
		carts:     carts,
		publisher: publisher,
		logger:    logger.OrNop(log).With("service", "order"),
		now:       time.Now,
		newNumber: newOrderNumber,
	}
}

// CheckoutInput is the buyer-supplied part of an order.
type CheckoutInput struct {
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
}

// Checkout turns the user's cart into a pending order. Stock is decremented and the cart emptied
// in the same transaction that writes the order.
func (s *Service) Checkout(ctx context.Context, userID string, in CheckoutInput) (_ *domain.Order, err error) {
	ctx, span := observability.Tracer().Start(ctx, "order.Checkout")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("cart is empty: %w", domain.ErrInvalidState)
		}
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, fmt.Errorf("cart is empty: %w", domain.ErrInvalidState)
	}

	items := make([]domain.OrderItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		p := line.Product
		if p == nil || !p.Active() || p.Stock < line.Quantity {
			stockErr := &domain.InsufficientStockError{ProductID: line.ProductID, Requested: line.Quantity}
			if p != nil {
				stockErr.ProductName = p.Name
				stockErr.Available = p.Stock
			}
			return nil, stockErr
		}
		items = append(items, domain.OrderItem{
			ProductID:  line.ProductID,
			Name:       p.Name,
			PriceCents: line.UnitPriceCents,
			Quantity:   line.Quantity,
		})
	}
	total := cart.Recalculate()
	span.SetAttributes(attribute.Int("order.items", len(items)), attribute.Int64("order.total_cents", total))

	var placed *domain.Order
	for attempt := 1; attempt <= placeAttempts; attempt++ {
		number, err := s.newNumber(s.now())
		if err != nil {
			return nil, err
		}
		placed, err = s.orders.Place(ctx, orderrepo.PlaceInput{
			UserID:          userID,
			CartID:          cart.ID,
			CartVersion:     cart.UpdatedAt,
			OrderNumber:     number,
			Items:           items,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   method,
			TotalCents:      total,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		s.logger.Warn("order number collision, retrying", "order_number", number, "attempt", attempt)
		placed = nil
	}
	if placed == nil {
		return nil, fmt.Errorf("could not allocate a unique order number after %d attempts", placeAttempts)
	}

	span.SetAttributes(attribute.String("order.number", placed.OrderNumber))
	s.publish(ctx, events.OrderCreated(*placed))
	return placed, nil
}

// ListResult is one page of orders.
type ListResult struct {
	Orders     []domain.Order
	Pagination domain.Pagination
}

// MyOrders lists the caller's orders, newest first.
func (s *Service) MyOrders(ctx context.Context, userID string, page domain.Page) (*ListResult, error) {
	return s.list(ctx, domain.OrderFilter{UserID: userID, Page: page})
}

// List returns all orders, optionally restricted to one status.
func (s *Service) List(ctx context.Context, status string, page domain.Page) (*ListResult, error) {
	f := domain.OrderFilter{Page: page}
	if status != "" {
		parsed, err := domain.ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = parsed
	}
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f domain.OrderFilter) (*ListResult, error) {
	f.Page = domain.NewPage(f.Page.Number, f.Page.Limit, defaultPageSize)
	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ListResult{Orders: orders, Pagination: domain.Paginate(f.Page, total)}, nil
}

// Get returns an order the caller owns, or any order for admins.
func (s *Service) Get(ctx context.Context, caller domain.Principal, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("order not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	if !caller.CanView(o.UserID) {
		return nil, fmt.Errorf("not authorized to view this order: %w", domain.ErrForbidden)
	}
	return o, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	o, previous, err := s.orders.UpdateStatus(ctx, id, next)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("order not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	if previous != o.Status {
		s.publish(ctx, events.StatusChanged(*o, previous))
	}
	return o, nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	next, err := domain.ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}
	o, previous, err := s.orders.UpdatePaymentStatus(ctx, id, next)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("order not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	if previous != o.PaymentStatus {
		s.publish(ctx, events.PaymentChanged(*o, previous))
	}
	return o, nil
}

func (s *Service) publish(ctx context.Context, ev events.OrderEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error("publish event failed", "type", ev.Type, "order_id", ev.OrderID, "error", err)
	}
}
