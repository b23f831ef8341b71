// Package payment reconciles checkout totals with the amount a payment
// gateway confirmed, and reads that amount from Stripe.
package payment

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/pkg/errors"
)

// Gateway supplies the amount confirmed server-side for a payment reference
type Gateway interface {
	ConfirmedAmount(ctx context.Context, reference string) (int64, error)
}

type StripeGateway struct {
	client   paymentintent.Client
	currency string
	logger   *zap.Logger
}

// NewStripeGateway creates a gateway for secretKey that only accepts
// payments in currency. A nil backend uses the public Stripe API.
func NewStripeGateway(secretKey, currency string, backend stripe.Backend, logger *zap.Logger) *StripeGateway {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeGateway{
		client:   paymentintent.Client{B: backend, Key: secretKey},
		currency: strings.ToLower(currency),
		logger:   logger,
	}
}

// ConfirmedAmount reads the PaymentIntent and returns its amount in minor
// units. Canceled intents and intents in another currency are not confirmed.
func (g *StripeGateway) ConfirmedAmount(ctx context.Context, reference string) (int64, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.client.Get(reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if stderrors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return 0, &errors.ErrNotFound{Resource: "payment", ID: reference}
		}
		g.logger.Error("Failed to retrieve payment intent", zap.String("payment_reference", reference), zap.Error(err))
		return 0, &errors.ErrGateway{Err: err}
	}

	if pi.Status == stripe.PaymentIntentStatusCanceled {
		return 0, &errors.ErrPaymentNotConfirmed{Reference: reference, Status: string(pi.Status)}
	}

	if g.currency != "" && string(pi.Currency) != g.currency {
		g.logger.Warn("Payment intent currency mismatch",
			zap.String("payment_reference", reference),
			zap.String("currency", string(pi.Currency)),
			zap.String("expected", g.currency),
		)
		return 0, &errors.ErrPaymentNotConfirmed{Reference: reference, Status: "currency " + string(pi.Currency)}
	}

	return pi.Amount, nil
}
