package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"webshop/internal/domain"
	"webshop/internal/logger"
	authsvc "webshop/internal/service/auth"
	ordersvc "webshop/internal/service/order"
	productsvc "webshop/internal/service/product"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// AuthService is the subset of the auth service used by handlers and middleware.
type AuthService interface {
	Register(ctx context.Context, in authsvc.RegisterInput) (*authsvc.Session, error)
	Login(ctx context.Context, email, password string) (*authsvc.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*authsvc.Session, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	Authenticate(token string) (domain.Principal, error)
}

type ProductService interface {
	List(ctx context.Context, f domain.ProductFilter) (*productsvc.ListResult, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Brands(ctx context.Context) ([]string, error)
	Create(ctx context.Context, in productsvc.CreateInput) (*domain.Product, error)
	Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	Retire(ctx context.Context, id string) error
}

type CartService interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error)
	Clear(ctx context.Context, userID string) (*domain.Cart, error)
}

type OrderService interface {
	Checkout(ctx context.Context, userID string, in ordersvc.CheckoutInput) (*domain.Order, error)
	MyOrders(ctx context.Context, userID string, page domain.Page) (*ordersvc.ListResult, error)
	List(ctx context.Context, status string, page domain.Page) (*ordersvc.ListResult, error)
	Get(ctx context.Context, caller domain.Principal, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id, status string) (*domain.Order, error)
}

// Deps carries the services mounted by the router.
type Deps struct {
	Auth     AuthService
	Products ProductService
	Cart     CartService
	Orders   OrderService
}

// Options tunes router behaviour that comes from configuration.
type Options struct {
	// CORSOrigin is a comma separated list of allowed origins.
	CORSOrigin  string
	ServiceName string
}

type handlers struct {
	deps   Deps
	logger *logger.Logger
}

// buildRouter wires routes for the API.
func buildRouter(log *logger.Logger, db *pgxpool.Pool, deps Deps, opts Options) (*gin.Engine, error) {
	if deps.Auth == nil || deps.Products == nil || deps.Cart == nil || deps.Orders == nil {
		return nil, fmt.Errorf("httpserver: all services are required")
	}
	log = logger.OrNop(log)

	corsCfg, err := corsConfig(opts.CORSOrigin)
	if err != nil {
		return nil, err
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "webshop-api"
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		recovery(log),
		requestID(),
		requestLogger(log),
		otelgin.Middleware(opts.ServiceName),
		cors.New(corsCfg),
	)

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	h := &handlers{deps: deps, logger: log}
	authRequired := requireAuth(deps.Auth)

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Health OK!"})
	})

	auth := api.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
	auth.POST("/refresh", h.refresh)
	auth.GET("/me", authRequired, h.me)

	products := api.Group("/products")
	products.GET("", h.listProducts)
	products.GET("/meta/categories", h.categories)
	products.GET("/meta/brands", h.brands)
	products.GET("/:id", h.getProduct)
	products.POST("", authRequired, requireAdmin(), h.createProduct)
	products.PUT("/:id", authRequired, requireAdmin(), h.updateProduct)
	products.DELETE("/:id", authRequired, requireAdmin(), h.deleteProduct)

	cart := api.Group("/cart", authRequired)
	cart.GET("", h.getCart)
	cart.POST("/add", h.addToCart)
	cart.PUT("/update", h.updateCartItem)
	cart.DELETE("/remove/:productId", h.removeFromCart)
	cart.DELETE("/clear", h.clearCart)

	orders := api.Group("/orders", authRequired)
	orders.POST("", h.createOrder)
	orders.GET("/my-orders", h.myOrders)
	orders.GET("", requireAdmin(), h.listOrders)
	orders.GET("/:id", h.getOrder)
	orders.PUT("/:id/status", requireAdmin(), h.updateOrderStatus)
	orders.PUT("/:id/payment", requireAdmin(), h.updatePaymentStatus)

	return router, nil
}

func corsConfig(origins string) (cors.Config, error) {
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:5173"}
	}
	cfg := cors.Config{
		AllowOrigins:     allowed,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if err := cfg.Validate(); err != nil {
		return cors.Config{}, fmt.Errorf("cors: %w", err)
	}
	return cfg, nil
}
