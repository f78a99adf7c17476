// Package api exposes the order engine over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/auth"
	"github.com/safar/order-engine/internal/models"
	"github.com/safar/order-engine/internal/service"
	"github.com/safar/order-engine/internal/store"
	"golang.org/x/time/rate"
	"go.uber.org/zap"
)

var errInvalidCredentials = apperr.Unauthorized("could not validate credentials")

type Catalog interface {
	List(ctx context.Context, filter store.ProductFilter) ([]models.Product, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, in service.ProductInput) (*models.Product, error)
	Update(ctx context.Context, id int64, in service.ProductInput) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}

type Orders interface {
	Create(ctx context.Context, userID int64, lines []models.LineItem) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error)
	Delete(ctx context.Context, orderID int64) error
	Get(ctx context.Context, orderID int64) (*models.Order, error)
	ListAll(ctx context.Context, skip, limit int) ([]models.Order, error)
	ListForUser(ctx context.Context, userID int64, skip, limit int) ([]models.Order, error)
	ListMine(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error)
	Summary(ctx context.Context) ([]store.StatusSummary, error)
}

type Carts interface {
	Add(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error)
	Remove(ctx context.Context, userID, productID int64) error
	List(ctx context.Context, userID int64) ([]models.CartItem, error)
	Checkout(ctx context.Context, userID int64) (*models.Order, error)
}

type Accounts interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.User, error)
	RegisterAdmin(ctx context.Context, in service.RegisterInput, key string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
}

type Services struct {
	Catalog  Catalog
	Orders   Orders
	Carts    Carts
	Accounts Accounts
}

type Options struct {
	Tokens   TokenParser
	TokenTTL time.Duration
	Policy   *auth.Policy
	Logger   *zap.Logger

	CORSOrigins []string
	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int
}

type handler struct {
	svc      Services
	tokens   TokenParser
	tokenTTL time.Duration
	policy   *auth.Policy
	logger   *zap.Logger
}

func NewRouter(svc Services, opts Options) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}

	if opts.Policy == nil {
		opts.Policy = auth.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	h := &handler{
		svc:      svc,
		tokens:   opts.Tokens,
		tokenTTL: opts.TokenTTL,
		policy:   opts.Policy,
		logger:   opts.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(opts.Logger))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	if opts.RequestsPerSecond > 0 {
		r.Use(NewRateLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst).Middleware())
	}
	r.Use(h.Authenticate())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "order engine is running"})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/register-admin", h.registerAdmin)
		authGroup.POST("/login", h.login)
	}

	products := r.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/search/:term", h.searchProducts)
		products.GET("/filter/price", h.filterProductsByPrice)
		products.GET("/filter/stock", h.filterProductsByStock)
		products.GET("/:id", h.getProduct)
		products.POST("", h.createProduct)
		products.PUT("/:id", h.updateProduct)
		products.DELETE("/:id", h.deleteProduct)
	}

	orders := r.Group("/orders")
	{
		orders.GET("", h.listOrders)
		orders.GET("/my-orders", h.myOrders)
		orders.GET("/user/:user_id", h.userOrders)
		orders.GET("/:id", h.getOrder)
		orders.POST("", h.createOrder)
		orders.PUT("/:id/status", h.updateOrderStatus)
		orders.DELETE("/:id", h.deleteOrder)
	}

	cart := r.Group("/cart")
	{
		cart.GET("/:user_id", h.getCart)
		cart.POST("", h.addCartItem)
		cart.DELETE("/:user_id/:product_id", h.removeCartItem)
		cart.POST("/:user_id/checkout", h.checkout)
	}

	admin := r.Group("/admin")
	{
		admin.GET("/dashboard", h.requireRole(models.RoleAdmin), h.adminDashboard)
		admin.GET("/reports", h.requireRole(models.RoleAdmin), h.adminReports)
		admin.GET("/profile", h.profile)
	}

	return r, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestHeader},
		ExposeHeaders: []string{"Content-Length", requestHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// authorize consults the policy for the current caller and renders the
// denial. It reports whether the handler may continue.
func (h *handler) authorize(c *gin.Context, resource auth.Resource, action auth.Action, ownerID int64) bool {
	if err := h.policy.Authorize(identityFrom(c), resource, action, ownerID); err != nil {
		h.respondError(c, err)
		return false
	}
	return true
}

func (h *handler) requireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.policy.RequireRole(identityFrom(c), role); err != nil {
			h.respondError(c, err)
			return
		}
		c.Next()
	}
}
