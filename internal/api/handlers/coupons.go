package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/service"
)

// HandleCheckCoupon handles POST /v1/coupons/check
func HandleCheckCoupon(coupons *service.CouponService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in service.CouponCheckInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		var userID *uuid.UUID
		if id, ok := middleware.GetUserID(c); ok {
			userID = &id
		}

		preview, err := coupons.Preview(c.Request.Context(), userID, in)
		if err != nil {
			respondError(c, logger, err, "check coupon")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"valid":           true,
			"coupon":          preview,
			"subtotal":        preview.Subtotal.StringFixed(2),
			"discount_amount": preview.Discount.StringFixed(2),
			"new_total":       preview.NewTotal.StringFixed(2),
		})
	}
}
