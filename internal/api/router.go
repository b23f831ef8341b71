package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/handlers"
	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/service"
)

// NewRouter creates and configures the Gin router. idempotency may be nil,
// in which case checkout requests are not deduplicated.
func NewRouter(cfg *config.Config, svcs *service.Services, idempotency middleware.IdempotencyStore, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Customer routes (user id set by the upstream gateway)
		userRoutes := v1.Group("")
		userRoutes.Use(middleware.UserMiddleware(true, logger))
		{
			checkout := []gin.HandlerFunc{}
			if idempotency != nil {
				checkout = append(checkout, middleware.IdempotencyMiddleware(idempotency, logger))
			}
			checkout = append(checkout, handlers.HandleCreateOrder(svcs, logger))

			userRoutes.POST("/orders", checkout...)
			userRoutes.GET("/orders/:id", handlers.HandleGetOrder(svcs.Orders, logger))
		}

		// Guests may preview coupons too
		v1.POST("/coupons/check", middleware.UserMiddleware(false, logger), handlers.HandleCheckCoupon(svcs.Coupons, logger))

		if cfg.Stripe.WebhookSecret != "" {
			v1.POST("/webhooks/stripe", handlers.HandleStripeWebhook(svcs.Orders, cfg.Stripe.WebhookSecret, logger))
		}

		// Admin routes
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(middleware.AdminAuth(cfg.Admin.APIKeyHash, logger))
		{
			adminRoutes.POST("/inventory/adjust", handlers.HandleAdjustStock(svcs.Inventory, logger))
			adminRoutes.GET("/products/:id/movements", handlers.HandleListMovements(svcs.Inventory, logger))
			adminRoutes.GET("/orders", handlers.HandleListOrders(svcs.Orders, logger))
			adminRoutes.GET("/orders/:id", handlers.HandleGetOrder(svcs.Orders, logger))
			adminRoutes.PUT("/orders/:id/status", handlers.HandleUpdateOrderStatus(svcs.Orders, logger))
		}
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
