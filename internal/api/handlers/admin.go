package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/inventory"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/service"
)

// AdjustStockRequest represents a manual stock correction
type AdjustStockRequest struct {
	ProductID string              `json:"product_id" binding:"required"`
	Delta     int                 `json:"delta" binding:"required"`
	Kind      domain.MovementKind `json:"kind,omitempty"`
	Reason    *string             `json:"reason,omitempty"`
}

// UpdateStatusRequest represents an order status change
type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
	Reason *string            `json:"reason,omitempty"`
}

// HandleAdjustStock handles POST /v1/admin/inventory/adjust
func HandleAdjustStock(ledger *inventory.Ledger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
			return
		}

		kind := req.Kind
		if kind == "" {
			kind = domain.MovementKindManualAdjustment
		}

		product, err := ledger.AdjustStock(c.Request.Context(), productID, req.Delta, kind, inventory.Metadata{Reason: req.Reason})
		if err != nil {
			respondError(c, logger, err, "adjust stock")
			return
		}

		logger.Info("Stock adjusted by admin",
			zap.String("product_id", productID.String()),
			zap.Int("delta", req.Delta),
			zap.String("kind", string(kind)),
		)

		c.JSON(http.StatusOK, gin.H{
			"product_id": product.ID.String(),
			"name":       product.Name,
			"stock":      product.Stock,
			"delta":      req.Delta,
			"kind":       kind,
		})
	}
}

// HandleListMovements handles GET /v1/admin/products/:id/movements
func HandleListMovements(ledger *inventory.Ledger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
			return
		}

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 {
			limit = 50
		}

		movements, err := ledger.Movements(c.Request.Context(), productID, limit)
		if err != nil {
			respondError(c, logger, err, "list movements")
			return
		}

		responses := make([]gin.H, len(movements))
		for i, m := range movements {
			entry := gin.H{
				"id":          m.ID.String(),
				"quantity":    m.Quantity,
				"type":        m.Kind,
				"stock_after": m.StockAfter,
				"created_at":  m.CreatedAt.Format(time.RFC3339),
			}
			if m.OrderID != nil {
				entry["order_id"] = m.OrderID.String()
			}
			if m.UserID != nil {
				entry["user_id"] = m.UserID.String()
			}
			if m.Reason != nil {
				entry["reason"] = *m.Reason
			}
			responses[i] = entry
		}

		c.JSON(http.StatusOK, gin.H{
			"product_id": productID.String(),
			"movements":  responses,
		})
	}
}

// HandleListOrders handles GET /v1/admin/orders
func HandleListOrders(orders *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter repository.OrderFilter

		if statusStr := c.Query("status"); statusStr != "" {
			status := domain.OrderStatus(statusStr)
			if !status.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter.Status = &status
		}

		for param, dst := range map[string]**time.Time{"from": &filter.CreatedFrom, "to": &filter.CreatedBefore} {
			raw := c.Query(param)
			if raw == "" {
				continue
			}
			t, err := parseDateParam(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param + " date, use YYYY-MM-DD or RFC 3339"})
				return
			}
			*dst = &t
		}

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 || limit > 200 {
			limit = 50
		}
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil || offset < 0 {
			offset = 0
		}
		filter.Limit = limit
		filter.Offset = offset

		list, err := orders.ListOrders(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, err, "list orders")
			return
		}

		responses := make([]service.OrderResponse, len(list))
		for i, order := range list {
			responses[i] = service.NewOrderResponse(order, nil)
		}

		c.JSON(http.StatusOK, gin.H{
			"orders": responses,
			"limit":  limit,
			"offset": offset,
		})
	}
}

// HandleUpdateOrderStatus handles PUT /v1/admin/orders/:id/status
func HandleUpdateOrderStatus(orders *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
			return
		}

		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		order, err := orders.UpdateStatus(c.Request.Context(), orderID, req.Status, req.Reason)
		if err != nil {
			respondError(c, logger, err, "update order status")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":         order.ID.String(),
			"status":     order.Status,
			"updated_at": order.UpdatedAt.Format(time.RFC3339),
		})
	}
}

// parseDateParam accepts a calendar date (midnight UTC) or an RFC 3339 timestamp
func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
