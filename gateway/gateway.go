// Package gateway is the HTTP surface of the shop: the storefront API, the
// back office API and the payment webhook.
package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/shop"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const maxUploadSize = 5 << 20

// ImageReader serves stored pictures back to browsers.
type ImageReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// AuditReader returns the recorded actions on an entity, newest first.
type AuditReader interface {
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// Services are the domain actions behind the routes.
type Services struct {
	Checkout  *shop.CheckoutService
	Orders    *shop.OrderService
	Catalog   *shop.CatalogService
	Coupons   *shop.CouponService
	Content   *shop.ContentService
	Community *shop.CommunityService
	Payments  payment.Gateway
	Images    ImageReader
	Audit     AuditReader
	Verifier  *auth.Verifier
	Users     auth.UserSyncer
	Health    map[string]HealthCheck
}

type Gateway struct {
	config   *config.ServerConfig
	services *Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.ServerConfig, services *Services, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.MaxMultipartMemory = maxUploadSize

	return &Gateway{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   router,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", g.health)

	api := g.router.Group("/api")
	api.Use(auth.Authenticate(g.services.Verifier, g.services.Users, g.logger))
	{
		api.GET("/products", g.listProducts)
		api.GET("/products/:slug", g.getProduct)
		api.GET("/categories", g.listCategories)
		api.GET("/blog", g.listPosts)
		api.GET("/blog/:slug", g.getPost)
		api.GET("/faq", g.listFAQ)
		api.GET("/settings", g.publicSettings)
		api.GET("/images/:key", g.serveImage)

		api.GET("/orders/track", g.trackOrder)
		api.POST("/checkout/quote", g.quote)
		api.POST("/checkout", g.checkout)
		api.POST("/webhooks/payment", g.paymentWebhook)

		api.POST("/newsletter", g.subscribe)
		api.POST("/newsletter/unsubscribe", g.unsubscribe)

		member := api.Group("", auth.RequireUser())
		{
			member.POST("/reviews", g.createReview)
			member.GET("/wishlist", g.listWishlist)
			member.POST("/wishlist", g.addToWishlist)
			member.DELETE("/wishlist/:productId", g.removeFromWishlist)
		}

		g.setupAdminRoutes(api.Group("/admin", auth.RequireAdmin()))
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (g *Gateway) setupAdminRoutes(admin *gin.RouterGroup) {
	orders := admin.Group("/orders")
	{
		orders.GET("", g.adminListOrders)
		orders.GET("/export", g.exportOrders)
		orders.GET("/:id", g.adminGetOrder)
		orders.GET("/:id/history", g.orderHistory)
		orders.PUT("/:id/status", g.updateOrderStatus)
		orders.PUT("/:id/tracking", g.updateTracking)
	}

	products := admin.Group("/products")
	{
		products.GET("", g.adminListProducts)
		products.GET("/:id", g.adminGetProduct)
		products.POST("", g.createProduct)
		products.PUT("/:id", g.updateProduct)
		products.DELETE("/:id", g.deleteProduct)
		products.POST("/:id/variants", g.createVariant)
		products.POST("/:id/images", g.uploadImage)
		products.DELETE("/:id/images/:key", g.deleteImage)
	}
	admin.PUT("/variants/:id", g.updateVariant)
	admin.DELETE("/variants/:id", g.deleteVariant)

	categories := admin.Group("/categories")
	{
		categories.POST("", g.createCategory)
		categories.PUT("/order", g.reorderCategories)
		categories.PUT("/:id", g.updateCategory)
		categories.DELETE("/:id", g.deleteCategory)
	}

	coupons := admin.Group("/coupons")
	{
		coupons.GET("", g.listCoupons)
		coupons.POST("", g.createCoupon)
		coupons.PUT("/:id", g.updateCoupon)
		coupons.DELETE("/:id", g.deleteCoupon)
	}

	blog := admin.Group("/blog")
	{
		blog.GET("", g.adminListPosts)
		blog.GET("/:id", g.adminGetPost)
		blog.POST("", g.createPost)
		blog.PUT("/:id", g.updatePost)
		blog.DELETE("/:id", g.deletePost)
	}

	faq := admin.Group("/faq")
	{
		faq.POST("", g.createFAQ)
		faq.PUT("/order", g.reorderFAQ)
		faq.PUT("/:id", g.updateFAQ)
		faq.DELETE("/:id", g.deleteFAQ)
	}

	admin.GET("/settings", g.adminSettings)
	admin.PUT("/settings", g.updateSettings)

	admin.GET("/reviews", g.pendingReviews)
	admin.PUT("/reviews/:id/approve", g.approveReview)
	admin.DELETE("/reviews/:id", g.deleteReview)

	admin.GET("/newsletter", g.listSubscribers)
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func (g *Gateway) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failing := gin.H{}
	for name, check := range g.services.Health {
		if err := check(ctx); err != nil {
			g.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
			failing[name] = err.Error()
		}
	}
	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "failing": failing})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
