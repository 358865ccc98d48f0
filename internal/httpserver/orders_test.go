package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"webshop/internal/domain"
	orderrepo "webshop/internal/repository/order"
	ordersvc "webshop/internal/service/order"
)

type memOrders struct {
	orders map[string]*domain.Order
}

func newMemOrders(orders ...domain.Order) *memOrders {
	m := &memOrders{orders: map[string]*domain.Order{}}
	for i := range orders {
		o := orders[i]
		m.orders[o.ID] = &o
	}
	return m
}

func (m *memOrders) Place(_ context.Context, in orderrepo.PlaceInput) (*domain.Order, error) {
	o := domain.Order{
		ID:              fmt.Sprintf("o%d", len(m.orders)+1),
		OrderNumber:     in.OrderNumber,
		UserID:          in.UserID,
		Items:           in.Items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		TotalCents:      in.TotalCents,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
		CreatedAt:       time.Now().UTC(),
	}
	m.orders[o.ID] = &o
	return &o, nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) List(_ context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	var out []domain.Order
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, next domain.OrderStatus) (*domain.Order, domain.OrderStatus, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	prev := o.Status
	if !prev.CanTransitionTo(next) {
		return nil, "", fmt.Errorf("cannot move order from %s to %s: %w", prev, next, domain.ErrInvalidState)
	}
	o.Status = next
	cp := *o
	return &cp, prev, nil
}

func (m *memOrders) UpdatePaymentStatus(_ context.Context, id string, next domain.PaymentStatus) (*domain.Order, domain.PaymentStatus, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	prev := o.PaymentStatus
	if !prev.CanTransitionTo(next) {
		return nil, "", fmt.Errorf("cannot move payment from %s to %s: %w", prev, next, domain.ErrInvalidState)
	}
	o.PaymentStatus = next
	cp := *o
	return &cp, prev, nil
}

type memCarts map[string]*domain.Cart

func (m memCarts) GetByUser(_ context.Context, userID string) (*domain.Cart, error) {
	c, ok := m[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func ownedOrder() domain.Order {
	return domain.Order{
		ID:            "o1",
		OrderNumber:   "ORD-1-ABCDEFGH",
		UserID:        "u1",
		Items:         []domain.OrderItem{{ProductID: "p1", Name: "Widget", PriceCents: 2999, Quantity: 2}},
		PaymentMethod: domain.PaymentPayPal,
		TotalCents:    5998,
		Status:        domain.OrderPending,
		PaymentStatus: domain.PaymentPending,
	}
}

const checkoutBody = `{"shippingAddress":{"street":"1 Main St","city":"Springfield","zipCode":"12345","country":"US"},"paymentMethod":"paypal"}`

func TestGetOrderOwnership(t *testing.T) {
	orders := ordersvc.New(newMemOrders(ownedOrder()), memCarts{}, nil, nil)
	router := newTestRouter(t, Deps{Orders: orders})

	cases := []struct {
		name  string
		token string
		path  string
		want  int
		body  string
	}{
		{"owner", "user-token", "/api/orders/o1", http.StatusOK, `"orderNumber":"ORD-1-ABCDEFGH"`},
		{"admin", "admin-token", "/api/orders/o1", http.StatusOK, `"totalAmount":59.98`},
		{"stranger", "other-token", "/api/orders/o1", http.StatusForbidden, "Not authorized to view this order"},
		{"missing", "user-token", "/api/orders/nope", http.StatusNotFound, "Order not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(router, http.MethodGet, tc.path, tc.token, "")
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("expected %s in body, got %s", tc.body, rec.Body.String())
			}
		})
	}
}

func TestCreateOrder(t *testing.T) {
	carts := memCarts{"u1": {
		ID:     "c1",
		UserID: "u1",
		Lines: []domain.CartLine{{
			ProductID:      "p1",
			Quantity:       2,
			UnitPriceCents: 1250,
			Product:        &domain.Product{ID: "p1", Name: "Widget", PriceCents: 1300, Stock: 5, Status: domain.ProductActive},
		}},
	}}
	router := newTestRouter(t, Deps{Orders: ordersvc.New(newMemOrders(), carts, nil, nil)})

	rec := do(router, http.MethodPost, "/api/orders", "user-token", checkoutBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Order   struct {
			OrderNumber string  `json:"orderNumber"`
			TotalAmount float64 `json:"totalAmount"`
			Status      string  `json:"status"`
			Items       []struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
			} `json:"items"`
		} `json:"order"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Order.TotalAmount != 25 || resp.Order.Status != "pending" {
		t.Fatalf("unexpected order: %+v", resp)
	}
	if len(resp.Order.Items) != 1 || resp.Order.Items[0].Price != 12.5 {
		t.Fatalf("expected snapshot price 12.5, got %+v", resp.Order.Items)
	}
	if !strings.HasPrefix(resp.Order.OrderNumber, "ORD-") {
		t.Fatalf("unexpected order number %q", resp.Order.OrderNumber)
	}
}

func TestCreateOrderFailures(t *testing.T) {
	router := newTestRouter(t, Deps{Orders: ordersvc.New(newMemOrders(), memCarts{}, nil, nil)})

	rec := do(router, http.MethodPost, "/api/orders", "user-token", checkoutBody)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"error":"Cart is empty"`) {
		t.Fatalf("expected 400 Cart is empty, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodPost, "/api/orders", "user-token", `{"shippingAddress":{"city":"X"},"paymentMethod":"paypal"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete address, got %d", rec.Code)
	}

	rec = do(router, http.MethodPost, "/api/orders", "user-token", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}

	rec = do(router, http.MethodPost, "/api/orders", "", checkoutBody)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	router := newTestRouter(t, Deps{Orders: ordersvc.New(newMemOrders(ownedOrder()), memCarts{}, nil, nil)})

	rec := do(router, http.MethodPut, "/api/orders/o1/status", "user-token", `{"status":"shipped"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	rec = do(router, http.MethodPut, "/api/orders/o1/status", "admin-token", `{"status":"lost"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Unknown order status") {
		t.Fatalf("expected 400 for unknown status, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodPut, "/api/orders/o1/status", "admin-token", `{"status":"shipped"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"shipped"`) {
		t.Fatalf("expected shipped order, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodPut, "/api/orders/o1/status", "admin-token", `{"status":"pending"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for illegal transition, got %d", rec.Code)
	}

	rec = do(router, http.MethodPut, "/api/orders/o1/payment", "admin-token", `{"paymentStatus":"paid"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"paymentStatus":"paid"`) {
		t.Fatalf("expected paid order, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodPut, "/api/orders/missing/payment", "admin-token", `{"paymentStatus":"paid"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListOrders(t *testing.T) {
	other := ownedOrder()
	other.ID, other.UserID, other.Status = "o2", "u2", domain.OrderShipped
	router := newTestRouter(t, Deps{Orders: ordersvc.New(newMemOrders(ownedOrder(), other), memCarts{}, nil, nil)})

	rec := do(router, http.MethodGet, "/api/orders/my-orders", "user-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"id":"o1"`) || strings.Contains(rec.Body.String(), `"id":"o2"`) {
		t.Fatalf("my-orders leaked another user's order: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"limit":10`) {
		t.Fatalf("expected default page size 10: %s", rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/api/orders", "user-token", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin listing, got %d", rec.Code)
	}

	rec = do(router, http.MethodGet, "/api/orders?status=shipped", "admin-token", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"o2"`) || strings.Contains(rec.Body.String(), `"id":"o1"`) {
		t.Fatalf("unexpected filtered listing: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/api/orders?page=abc", "admin-token", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed page, got %d", rec.Code)
	}

	rec = do(router, http.MethodGet, "/api/orders/my-orders?page=9223372036854775807", "user-token", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"page":92233720368547758`) {
		t.Fatalf("expected huge page clamped, got %d %s", rec.Code, rec.Body.String())
	}
}
