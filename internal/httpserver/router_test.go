package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"webshop/internal/domain"
	"webshop/internal/logger"
	authsvc "webshop/internal/service/auth"
	ordersvc "webshop/internal/service/order"
	productsvc "webshop/internal/service/product"

	"github.com/gin-gonic/gin"
)

var testTokens = map[string]domain.Principal{
	"user-token":  {UserID: "u1", Role: domain.RoleUser},
	"other-token": {UserID: "u2", Role: domain.RoleUser},
	"admin-token": {UserID: "admin", Role: domain.RoleAdmin},
}

type stubAuth struct {
	session  *authsvc.Session
	user     *domain.User
	err      error
	gotEmail string
}

func (s *stubAuth) Register(_ context.Context, in authsvc.RegisterInput) (*authsvc.Session, error) {
	s.gotEmail = in.Email
	return s.session, s.err
}

func (s *stubAuth) Login(_ context.Context, email, _ string) (*authsvc.Session, error) {
	s.gotEmail = email
	return s.session, s.err
}

func (s *stubAuth) Refresh(_ context.Context, _ string) (*authsvc.Session, error) {
	return s.session, s.err
}

func (s *stubAuth) Me(_ context.Context, userID string) (*domain.User, error) {
	if s.user == nil || s.user.ID != userID {
		return nil, domain.ErrNotFound
	}
	return s.user, nil
}

func (s *stubAuth) Authenticate(token string) (domain.Principal, error) {
	p, ok := testTokens[token]
	if !ok {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	return p, nil
}

type stubProducts struct {
	list        *productsvc.ListResult
	product     *domain.Product
	err         error
	panicOnList bool
	lastFilter  domain.ProductFilter
	created     productsvc.CreateInput
	patch       domain.ProductPatch
	retired     string
}

func (s *stubProducts) List(_ context.Context, f domain.ProductFilter) (*productsvc.ListResult, error) {
	if s.panicOnList {
		panic("boom")
	}
	s.lastFilter = f
	if s.err != nil {
		return nil, s.err
	}
	if s.list == nil {
		return &productsvc.ListResult{}, nil
	}
	return s.list, nil
}

func (s *stubProducts) Get(_ context.Context, _ string) (*domain.Product, error) {
	return s.product, s.err
}

func (s *stubProducts) Categories(_ context.Context) ([]string, error) {
	return []string{"electronics", "sports"}, s.err
}

func (s *stubProducts) Brands(_ context.Context) ([]string, error) {
	return nil, s.err
}

func (s *stubProducts) Create(_ context.Context, in productsvc.CreateInput) (*domain.Product, error) {
	s.created = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Product{ID: "new", Name: in.Name, PriceCents: in.PriceCents, Status: domain.ProductActive}, nil
}

func (s *stubProducts) Update(_ context.Context, _ string, patch domain.ProductPatch) (*domain.Product, error) {
	s.patch = patch
	return s.product, s.err
}

func (s *stubProducts) Retire(_ context.Context, id string) error {
	s.retired = id
	return s.err
}

type stubCart struct {
	cart         *domain.Cart
	err          error
	lastUser     string
	lastProduct  string
	lastQuantity int
}

func (s *stubCart) result() (*domain.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.cart == nil {
		return &domain.Cart{ID: "c1", UserID: s.lastUser}, nil
	}
	return s.cart, nil
}

func (s *stubCart) Get(_ context.Context, userID string) (*domain.Cart, error) {
	s.lastUser = userID
	return s.result()
}

func (s *stubCart) AddItem(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	s.lastUser, s.lastProduct, s.lastQuantity = userID, productID, quantity
	return s.result()
}

func (s *stubCart) UpdateQuantity(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	s.lastUser, s.lastProduct, s.lastQuantity = userID, productID, quantity
	return s.result()
}

func (s *stubCart) RemoveItem(_ context.Context, userID, productID string) (*domain.Cart, error) {
	s.lastUser, s.lastProduct = userID, productID
	return s.result()
}

func (s *stubCart) Clear(_ context.Context, userID string) (*domain.Cart, error) {
	s.lastUser = userID
	return s.result()
}

func newTestRouter(t *testing.T, deps Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.Auth == nil {
		deps.Auth = &stubAuth{}
	}
	if deps.Products == nil {
		deps.Products = &stubProducts{}
	}
	if deps.Cart == nil {
		deps.Cart = &stubCart{}
	}
	if deps.Orders == nil {
		deps.Orders = ordersvc.New(newMemOrders(), memCarts{}, nil, nil)
	}
	router, err := buildRouter(logger.Nop(), nil, deps, Options{})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router
}

func do(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBuildRouterRequiresServices(t *testing.T) {
	if _, err := buildRouter(logger.Nop(), nil, Deps{}, Options{}); err == nil {
		t.Fatalf("expected error for missing services")
	}
}

func TestBuildRouterRejectsBadCORSOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := Deps{Auth: &stubAuth{}, Products: &stubProducts{}, Cart: &stubCart{}, Orders: ordersvc.New(newMemOrders(), memCarts{}, nil, nil)}
	if _, err := buildRouter(logger.Nop(), nil, deps, Options{CORSOrigin: "localhost:5173"}); err == nil {
		t.Fatalf("expected error for origin without scheme")
	}
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter(t, Deps{})
	rec := do(router, http.MethodGet, "/api/nope", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Route not found"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, Deps{})

	rec := do(router, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = do(router, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = do(router, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a database, got %d", rec.Code)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	router := newTestRouter(t, Deps{Products: &stubProducts{panicOnList: true}})
	rec := do(router, http.MethodGet, "/api/products", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Something went wrong!") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	router := newTestRouter(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	rec = do(router, http.MethodGet, "/api/health", "", "")
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRequireAuth(t *testing.T) {
	router := newTestRouter(t, Deps{})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"unknown token", "Bearer forged", http.StatusUnauthorized},
		{"valid", "Bearer user-token", http.StatusOK},
		{"case insensitive scheme", "bearer user-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	products := &stubProducts{}
	router := newTestRouter(t, Deps{Products: products})
	body := `{"name":"Lamp","price":19.99,"category":"home","stock":3}`

	rec := do(router, http.MethodPost, "/api/products", "user-token", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
	if products.created.Name != "" {
		t.Fatalf("service must not be called for non-admin")
	}

	rec = do(router, http.MethodPost, "/api/products", "admin-token", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{errors.New("connection refused"), http.StatusInternalServerError, "Something went wrong!"},
		{domain.ErrNotFound, http.StatusNotFound, "Not found"},
		{domain.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{&domain.InsufficientStockError{ProductName: "Widget"}, http.StatusBadRequest, "Not enough stock for Widget"},
		{&domain.InsufficientStockError{}, http.StatusBadRequest, "Not enough stock available"},
		{domain.ErrAlreadyExists, http.StatusConflict, "Already exists"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	}
	for _, tc := range cases {
		router := newTestRouter(t, Deps{Products: &stubProducts{err: tc.err}})
		rec := do(router, http.MethodGet, "/api/products/p1", "", "")
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tc.message) {
			t.Fatalf("%v: expected message %q, got %s", tc.err, tc.message, rec.Body.String())
		}
	}
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		want     string
	}{
		{errors.New("cart is empty: invalid state"), domain.ErrInvalidState, "Cart is empty"},
		{domain.ErrInvalidState, domain.ErrInvalidState, "Invalid state"},
		{errors.New("quantity must be at least 1: invalid argument"), domain.ErrInvalidArgument, "Quantity must be at least 1"},
		{errors.New("order not found: not found"), domain.ErrNotFound, "Order not found"},
	}
	for _, tc := range cases {
		if got := errorMessage(tc.err, tc.sentinel); got != tc.want {
			t.Fatalf("errorMessage(%q) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
