package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"webshop/internal/domain"
	"webshop/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices are JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

const internalErrorMessage = "Something went wrong!"

var errorStatuses = []struct {
	sentinel error
	status   int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrInsufficientStock, http.StatusBadRequest},
	{domain.ErrInvalidArgument, http.StatusBadRequest},
	{domain.ErrInvalidState, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrAlreadyExists, http.StatusConflict},
}

// writeError maps a service error onto a status code and a client-facing message.
// Unclassified errors are logged and hidden behind a generic 500.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.sentinel) {
			c.AbortWithStatusJSON(e.status, gin.H{"error": errorMessage(err, e.sentinel)})
			return
		}
	}
	log.Error("request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString(string(requestIDCtxKey)),
		"error", err,
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": internalErrorMessage})
}

// errorMessage drops the trailing sentinel text added by %w wrapping and capitalises the rest,
// so "cart is empty: invalid state" reads "Cart is empty".
func errorMessage(err, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimSuffix(msg, ": "+sentinel.Error()); trimmed != "" {
		msg = trimmed
	}
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// decimalToCents rejects sub-cent precision rather than silently rounding.
func decimalToCents(d decimal.Decimal) (int64, bool) {
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, false
	}
	return shifted.IntPart(), true
}

type productResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Stock       int             `json:"stock"`
	Status      string          `json:"status"`
	IsActive    bool            `json:"isActive"`
	Images      []string        `json:"images"`
	Featured    bool            `json:"featured"`
	Rating      domain.Rating   `json:"rating"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toProductResponse(p domain.Product) productResponse {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       centsToDecimal(p.PriceCents),
		Category:    p.Category,
		Brand:       p.Brand,
		Stock:       p.Stock,
		Status:      string(p.Status),
		IsActive:    p.Active(),
		Images:      images,
		Featured:    p.Featured,
		Rating:      p.Rating,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

type cartItemResponse struct {
	ProductID string           `json:"productId"`
	Product   *productResponse `json:"product,omitempty"`
	Quantity  int              `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Total     decimal.Decimal  `json:"total"`
}

type cartResponse struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user"`
	Items       []cartItemResponse `json:"items"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func toCartResponse(c *domain.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		item := cartItemResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     centsToDecimal(l.UnitPriceCents),
			Total:     centsToDecimal(l.TotalCents),
		}
		if l.Product != nil {
			p := toProductResponse(*l.Product)
			item.Product = &p
		}
		items = append(items, item)
	}
	return cartResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		Items:       items,
		TotalAmount: centsToDecimal(c.TotalCents),
		UpdatedAt:   c.UpdatedAt,
	}
}

type orderItemResponse struct {
	ProductID string          `json:"product"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type orderResponse struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"orderNumber"`
	UserID          string                 `json:"user"`
	Items           []orderItemResponse    `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	TotalAmount     decimal.Decimal        `json:"totalAmount"`
	Status          string                 `json:"status"`
	PaymentStatus   string                 `json:"paymentStatus"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     centsToDecimal(it.PriceCents),
			Quantity:  it.Quantity,
		})
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		TotalAmount:     centsToDecimal(o.TotalCents),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	return out
}
