package order

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"webshop/internal/domain"
	"webshop/internal/events"
	orderrepo "webshop/internal/repository/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrders struct {
	placeCalls  []orderrepo.PlaceInput
	collisions  int
	placeErr    error
	byID        map[string]domain.Order
	lastFilter  domain.OrderFilter
	prevStatus  domain.OrderStatus
	prevPayment domain.PaymentStatus
	updateErr   error
}

func (s *stubOrders) Place(_ context.Context, in orderrepo.PlaceInput) (*domain.Order, error) {
	s.placeCalls = append(s.placeCalls, in)
	if s.collisions > 0 {
		s.collisions--
		return nil, domain.ErrAlreadyExists
	}
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	return &domain.Order{
		ID:              "o1",
		OrderNumber:     in.OrderNumber,
		UserID:          in.UserID,
		Items:           in.Items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		TotalCents:      in.TotalCents,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
	}, nil
}

func (s *stubOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (s *stubOrders) List(_ context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	s.lastFilter = f
	return []domain.Order{{ID: "o1"}}, 21, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id string, next domain.OrderStatus) (*domain.Order, domain.OrderStatus, error) {
	if s.updateErr != nil {
		return nil, "", s.updateErr
	}
	o := s.byID[id]
	o.Status = next
	return &o, s.prevStatus, nil
}

func (s *stubOrders) UpdatePaymentStatus(_ context.Context, id string, next domain.PaymentStatus) (*domain.Order, domain.PaymentStatus, error) {
	if s.updateErr != nil {
		return nil, "", s.updateErr
	}
	o := s.byID[id]
	o.PaymentStatus = next
	return &o, s.prevPayment, nil
}

type stubCarts struct {
	cart *domain.Cart
	err  error
}

func (s stubCarts) GetByUser(context.Context, string) (*domain.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cart, nil
}

type recordingPublisher struct {
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.OrderEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

var address = domain.ShippingAddress{Street: "1 Main St", City: "Springfield", ZipCode: "12345", Country: "US"}

func validInput() CheckoutInput {
	return CheckoutInput{ShippingAddress: address, PaymentMethod: "credit_card"}
}

func cartWith(lines ...domain.CartLine) *domain.Cart {
	c := &domain.Cart{ID: "c1", UserID: "u1", UpdatedAt: time.Unix(100, 0), Lines: lines}
	c.Recalculate()
	return c
}

func line(id, name string, price int64, qty, stock int) domain.CartLine {
	return domain.CartLine{
		ProductID:      id,
		Quantity:       qty,
		UnitPriceCents: price,
		Product:        &domain.Product{ID: id, Name: name, PriceCents: price, Stock: stock, Status: domain.ProductActive},
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	orders := &stubOrders{}
	svc := New(orders, stubCarts{cart: cartWith()}, nil, nil)

	_, err := svc.Checkout(context.Background(), "u1", validInput())
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, "cart is empty: invalid state", err.Error())
	assert.Empty(t, orders.placeCalls)

	svc = New(orders, stubCarts{err: domain.ErrNotFound}, nil, nil)
	_, err = svc.Checkout(context.Background(), "u1", validInput())
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCheckoutInsufficientStockNamesProduct(t *testing.T) {
	orders := &stubOrders{}
	c := cartWith(line("a", "A", 1000, 2, 5), line("b", "B", 2000, 10, 3))
	svc := New(orders, stubCarts{cart: c}, nil, nil)

	_, err := svc.Checkout(context.Background(), "u1", validInput())
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "B", stockErr.ProductName)
	assert.Equal(t, "Not enough stock for B", err.Error())
	assert.Empty(t, orders.placeCalls)
}

func TestCheckoutRetiredProductIsUnavailable(t *testing.T) {
	l := line("a", "A", 1000, 1, 5)
	l.Product.Status = domain.ProductRetired
	svc := New(&stubOrders{}, stubCarts{cart: cartWith(l)}, nil, nil)

	_, err := svc.Checkout(context.Background(), "u1", validInput())
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestCheckoutSnapshotsCartAndPublishes(t *testing.T) {
	orders := &stubOrders{}
	pub := &recordingPublisher{}
	l := line("a", "Phone", 99999, 2, 5)
	l.Product.PriceCents = 120000 // price changed after the line was added
	c := cartWith(l, line("b", "Case", 1999, 1, 10))
	svc := New(orders, stubCarts{cart: c}, pub, nil)

	o, err := svc.Checkout(context.Background(), "u1", validInput())
	require.NoError(t, err)
	require.Len(t, orders.placeCalls, 1)

	in := orders.placeCalls[0]
	assert.Equal(t, int64(2*99999+1999), in.TotalCents)
	assert.Equal(t, c.TotalCents, o.TotalCents)
	assert.Equal(t, "c1", in.CartID)
	assert.Equal(t, c.UpdatedAt, in.CartVersion)
	assert.Equal(t, domain.PaymentCreditCard, in.PaymentMethod)
	require.Len(t, in.Items, 2)
	assert.Equal(t, domain.OrderItem{ProductID: "a", Name: "Phone", PriceCents: 99999, Quantity: 2}, in.Items[0])
	assert.Regexp(t, `^ORD-\d+-[0-9A-Z]{8}$`, o.OrderNumber)
	assert.Equal(t, domain.OrderPending, o.Status)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrderCreated, pub.events[0].Type)
	assert.Equal(t, o.OrderNumber, pub.events[0].OrderNumber)
}

func TestCheckoutPublishFailureDoesNotFailOrder(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := New(&stubOrders{}, stubCarts{cart: cartWith(line("a", "A", 100, 1, 1))}, pub, nil)

	_, err := svc.Checkout(context.Background(), "u1", validInput())
	require.NoError(t, err)
}

func TestCheckoutRetriesOrderNumberCollision(t *testing.T) {
	orders := &stubOrders{collisions: 2}
	svc := New(orders, stubCarts{cart: cartWith(line("a", "A", 100, 1, 1))}, nil, nil)

	o, err := svc.Checkout(context.Background(), "u1", validInput())
	require.NoError(t, err)
	require.Len(t, orders.placeCalls, 3)
	seen := map[string]bool{}
	for _, call := range orders.placeCalls {
		assert.False(t, seen[call.OrderNumber], "order number reused: %s", call.OrderNumber)
		seen[call.OrderNumber] = true
	}
	assert.Equal(t, orders.placeCalls[2].OrderNumber, o.OrderNumber)
}

func TestCheckoutGivesUpAfterRepeatedCollisions(t *testing.T) {
	orders := &stubOrders{collisions: 10}
	svc := New(orders, stubCarts{cart: cartWith(line("a", "A", 100, 1, 1))}, nil, nil)

	_, err := svc.Checkout(context.Background(), "u1", validInput())
	require.Error(t, err)
	assert.Len(t, orders.placeCalls, placeAttempts)
}

func TestCheckoutPropagatesRepositoryStockFailure(t *testing.T) {
	stockErr := &domain.InsufficientStockError{ProductName: "A"}
	orders := &stubOrders{placeErr: stockErr}
	pub := &recordingPublisher{}
	svc := New(orders, stubCarts{cart: cartWith(line("a", "A", 100, 1, 1))}, pub, nil)

	_, err := svc.Checkout(context.Background(), "u1", validInput())
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Empty(t, pub.events)
}

func TestCheckoutValidatesInput(t *testing.T) {
	orders := &stubOrders{}
	svc := New(orders, stubCarts{cart: cartWith(line("a", "A", 100, 1, 1))}, nil, nil)

	_, err := svc.Checkout(context.Background(), "u1", CheckoutInput{PaymentMethod: "paypal"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Checkout(context.Background(), "u1", CheckoutInput{ShippingAddress: address, PaymentMethod: "bitcoin"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, orders.placeCalls)
}

func TestGetEnforcesOwnership(t *testing.T) {
	orders := &stubOrders{byID: map[string]domain.Order{"o1": {ID: "o1", UserID: "owner"}}}
	svc := New(orders, stubCarts{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, domain.Principal{UserID: "owner", Role: domain.RoleUser}, "o1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, domain.Principal{UserID: "admin", Role: domain.RoleAdmin}, "o1")
	require.NoError(t, err)

	_, err = svc.Get(ctx, domain.Principal{UserID: "stranger", Role: domain.RoleUser}, "o1")
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, "not authorized to view this order: forbidden", err.Error())

	_, err = svc.Get(ctx, domain.Principal{UserID: "owner"}, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListing(t *testing.T) {
	orders := &stubOrders{}
	svc := New(orders, stubCarts{}, nil, nil)
	ctx := context.Background()

	res, err := svc.MyOrders(ctx, "u1", domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, "u1", orders.lastFilter.UserID)
	assert.Equal(t, 10, orders.lastFilter.Page.Limit)
	assert.Equal(t, 3, res.Pagination.Pages)

	_, err = svc.List(ctx, "Shipped", domain.Page{Number: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, orders.lastFilter.Status)
	assert.Empty(t, orders.lastFilter.UserID)

	_, err = svc.List(ctx, "lost", domain.Page{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUpdateStatusPublishesOnlyOnChange(t *testing.T) {
	orders := &stubOrders{byID: map[string]domain.Order{"o1": {ID: "o1", Status: domain.OrderPending}}, prevStatus: domain.OrderPending}
	pub := &recordingPublisher{}
	svc := New(orders, stubCarts{}, pub, nil)
	ctx := context.Background()

	o, err := svc.UpdateStatus(ctx, "o1", "processing")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderProcessing, o.Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrderStatusChanged, pub.events[0].Type)
	assert.Equal(t, "pending", pub.events[0].Previous)

	_, err = svc.UpdateStatus(ctx, "o1", "pending")
	require.NoError(t, err)
	assert.Len(t, pub.events, 1)

	_, err = svc.UpdateStatus(ctx, "o1", "teleported")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	orders.updateErr = fmt.Errorf("cannot move order: %w", domain.ErrInvalidState)
	_, err = svc.UpdateStatus(ctx, "o1", "delivered")
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestUpdatePaymentStatus(t *testing.T) {
	orders := &stubOrders{byID: map[string]domain.Order{"o1": {ID: "o1"}}, prevPayment: domain.PaymentPending}
	pub := &recordingPublisher{}
	svc := New(orders, stubCarts{}, pub, nil)

	o, err := svc.UpdatePaymentStatus(context.Background(), "o1", "paid")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrderPaymentChanged, pub.events[0].Type)

	orders.updateErr = domain.ErrNotFound
	_, err = svc.UpdatePaymentStatus(context.Background(), "o1", "paid")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderNumberFormatAndUniqueness(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-1700000000000-[0-9A-Z]{8}$`)
	now := time.UnixMilli(1700000000000)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		n, err := newOrderNumber(now)
		require.NoError(t, err)
		require.Regexp(t, pattern, n)
		_, dup := seen[n]
		require.False(t, dup, "duplicate order number %s", n)
		seen[n] = struct{}{}
	}
}
