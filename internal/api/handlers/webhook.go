package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/service"
	"github.com/jafarshop/storefront/pkg/errors"
)

const maxWebhookBody = 65536

// paymentIntentStatuses maps PaymentIntent events to order statuses
var paymentIntentStatuses = map[stripe.EventType]domain.OrderStatus{
	"payment_intent.processing":       domain.OrderStatusProcessing,
	"payment_intent.requires_action":  domain.OrderStatusRequiresAction,
	"payment_intent.partially_funded": domain.OrderStatusPartiallyFunded,
	"payment_intent.succeeded":        domain.OrderStatusSucceeded,
	"payment_intent.payment_failed":   domain.OrderStatusFailed,
	"payment_intent.canceled":         domain.OrderStatusCanceled,
}

// HandleStripeWebhook handles POST /v1/webhooks/stripe. Events that do not
// concern a known order are acknowledged so Stripe stops redelivering them;
// storage failures answer 500 so they are retried.
func HandleStripeWebhook(orders *service.OrderService, secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
			return
		}

		status, ok := paymentIntentStatuses[event.Type]
		if !ok {
			logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
			c.JSON(http.StatusOK, gin.H{"status": "received"})
			return
		}

		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			logger.Error("Failed to unmarshal payment intent", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment intent"})
			return
		}

		applied, err := orders.ApplyPaymentStatus(c.Request.Context(), pi.ID, status)
		if err != nil {
			var nf *errors.ErrNotFound
			if stderrors.As(err, &nf) {
				logger.Warn("No order for payment intent", zap.String("payment_intent_id", pi.ID))
				c.JSON(http.StatusOK, gin.H{"status": "received"})
				return
			}
			respondError(c, logger, err, "apply payment status")
			return
		}

		logger.Info("Processed Stripe webhook",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("payment_intent_id", pi.ID),
			zap.Bool("applied", applied),
		)
		c.JSON(http.StatusOK, gin.H{"status": "received", "applied": applied})
	}
}
