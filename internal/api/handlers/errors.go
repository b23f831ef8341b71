package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/pkg/errors"
)

// respondError maps service errors to HTTP responses. Anything unrecognised
// is logged and reported as an internal error.
func respondError(c *gin.Context, logger *zap.Logger, err error, action string) {
	var (
		verr       *errors.ErrValidation
		nf         *errors.ErrNotFound
		stock      *errors.ErrInsufficientStock
		couponErr  *errors.ErrCouponInvalid
		mismatch   *errors.ErrSecurityMismatch
		unpaid     *errors.ErrPaymentNotConfirmed
		gateway    *errors.ErrGateway
		transition *errors.ErrInvalidStateTransition
		unauth     *errors.ErrUnauthorized
		inUse      *errors.ErrPaymentReferenceInUse
	)

	switch {
	case stderrors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation failed",
			"details": verr.Fields,
		})
	case stderrors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Resource + " not found"})
	case stderrors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "insufficient stock",
			"product_id": stock.ProductID,
			"product":    stock.ProductName,
			"available":  stock.Available,
			"requested":  stock.Requested,
		})
	case stderrors.As(err, &couponErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"valid": false,
			"error": couponErr.Reason,
			"code":  couponErr.Code,
		})
	case stderrors.As(err, &mismatch):
		// amounts are in the logs only
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment verification failed"})
	case stderrors.As(err, &unpaid):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment is not confirmed", "status": unpaid.Status})
	case stderrors.As(err, &inUse):
		c.JSON(http.StatusConflict, gin.H{"error": "payment is already attached to an order"})
	case stderrors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": transition.Error()})
	case stderrors.As(err, &unauth):
		c.JSON(http.StatusUnauthorized, gin.H{"error": unauth.Message})
	case stderrors.As(err, &gateway):
		logger.Error("Payment gateway failure", zap.String("action", action), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
	case stderrors.Is(err, context.DeadlineExceeded):
		logger.Warn("Request timed out", zap.String("action", action), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request timed out, please retry"})
	default:
		logger.Error("Failed to "+action, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
