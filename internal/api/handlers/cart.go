package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/service"
)

// HandleCreateOrder handles POST /v1/orders. The cart is priced on the
// server; when a payment gateway is configured the confirmed payment amount
// is read from it and must match the computed total.
func HandleCreateOrder(svcs *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var in service.CreateOrderInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		ctx := c.Request.Context()

		shipping, err := svcs.Shipping.Rate(ctx, in.Items, in.ShippingAddress)
		if err != nil {
			respondError(c, logger, err, "rate shipping")
			return
		}
		in.ShippingCost = shipping

		var confirmed *int64
		reference := strings.TrimSpace(in.PaymentReference)
		if svcs.Payments != nil && reference != "" {
			amount, err := svcs.Payments.ConfirmedAmount(ctx, reference)
			if err != nil {
				respondError(c, logger, err, "confirm payment")
				return
			}
			confirmed = &amount
		}

		checkout, err := svcs.Orders.CreateOrder(ctx, userID, in, confirmed)
		if err != nil {
			respondError(c, logger, err, "create order")
			return
		}

		if key := middleware.GetIdempotencyKey(c); key != "" {
			logger.Debug("Order created with idempotency key",
				zap.String("order_id", checkout.Order.ID.String()),
				zap.String("idempotency_key", key),
			)
		}

		c.JSON(http.StatusCreated, service.NewOrderResponse(checkout.Order, checkout.Items))
	}
}
