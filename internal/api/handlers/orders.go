package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/service"
)

// HandleGetOrder handles GET /v1/orders/:id and GET /v1/admin/orders/:id.
// Users only see their own orders; admins see every order.
func HandleGetOrder(orders *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var owner *uuid.UUID
		if !middleware.IsAdmin(c) {
			userID, ok := middleware.GetUserID(c)
			if !ok {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			owner = &userID
		}

		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
			return
		}

		checkout, err := orders.GetOrder(c.Request.Context(), orderID, owner)
		if err != nil {
			respondError(c, logger, err, "get order")
			return
		}

		c.JSON(http.StatusOK, service.NewOrderResponse(checkout.Order, checkout.Items))
	}
}
