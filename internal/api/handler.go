package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Catalog is the read side the storefront routes serve from.
type Catalog interface {
	Products(ctx context.Context) ([]models.Product, error)
	FeaturedProducts(ctx context.Context) ([]models.Product, error)
	ProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ProductsByCategory(ctx context.Context, categoryID string) ([]models.Product, error)
	Categories(ctx context.Context) ([]models.Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies wires the handler to the service layer.
type Dependencies struct {
	Catalog    Catalog
	Carts      *service.CartService
	Checkout   *service.CheckoutService
	Affiliates *service.AffiliateService
	Payments   *service.PaymentService
	Orders     *service.OrderService
	Addresses  *service.AddressService

	Sessions   session.Store
	Cookie     session.CookieOptions
	AdminToken string
	Readiness  map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	catalog    Catalog
	carts      *service.CartService
	checkout   *service.CheckoutService
	affiliates *service.AffiliateService
	payments   *service.PaymentService
	orders     *service.OrderService
	addresses  *service.AddressService

	sessions   session.Store
	cookie     session.CookieOptions
	adminToken string
	readiness  map[string]Pinger
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		catalog:    deps.Catalog,
		carts:      deps.Carts,
		checkout:   deps.Checkout,
		affiliates: deps.Affiliates,
		payments:   deps.Payments,
		orders:     deps.Orders,
		addresses:  deps.Addresses,
		sessions:   deps.Sessions,
		cookie:     deps.Cookie,
		adminToken: deps.AdminToken,
		readiness:  deps.Readiness,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	// Stripe calls this without a session cookie.
	api.POST("/webhooks/stripe", h.stripeWebhook)

	admin := api.Group("/orders", adminOnly(h.adminToken))
	{
		admin.GET("", h.listOrders)
		admin.GET("/count", h.countOrders)
		admin.GET("/:id", h.getOrder)
		admin.PUT("/:id/payment-status", h.updatePaymentStatus)
	}

	shop := api.Group("", session.Middleware(h.sessions, h.cookie))
	{
		shop.GET("/products", h.listProducts)
		shop.GET("/products/featured", h.featuredProducts)
		shop.GET("/products/category/:id", h.productsByCategory)
		shop.GET("/products/:slug", h.getProduct)
		shop.GET("/categories", h.listCategories)
		shop.GET("/categories/:slug", h.getCategory)

		shop.GET("/cart", h.getCart)
		shop.POST("/cart", h.addToCart)
		shop.PUT("/cart/:id", h.updateCartItem)
		shop.DELETE("/cart/:id", h.removeCartItem)
		shop.DELETE("/cart", h.clearCart)

		shop.GET("/checkout/state", h.checkoutState)
		shop.POST("/checkout/initialize", h.initializeCheckout)
		shop.POST("/checkout/personal-info", h.submitPersonalInfo)
		shop.POST("/checkout/shipping-info", h.submitShippingInfo)
		shop.POST("/checkout/payment-method", h.selectPaymentMethod)
		shop.POST("/checkout/confirm-payment", h.confirmCheckoutPayment)

		shop.POST("/affiliate-code/validate", h.validateAffiliateCode)
		shop.GET("/affiliate/validate/:code", h.validateAffiliateParam)

		shop.POST("/create-payment-intent", h.createPaymentIntent)
		shop.POST("/confirm-payment", h.paymentIntentStatus)

		shop.POST("/validate-address", h.validateAddress)
		shop.POST("/shipping-rates", h.shippingRates)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency and reports the ones that failed.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, p := range h.readiness {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"checks": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
