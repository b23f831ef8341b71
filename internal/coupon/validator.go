// Package coupon decides whether a cart-level coupon applies and how much it
// takes off. Validation is read-only; redeeming a coupon (incrementing its
// usage counter) is left to the checkout transaction.
package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/internal/domain"
)

// Reasons a coupon is rejected, in evaluation order
const (
	ReasonInactive    = "coupon is inactive"
	ReasonNotStarted  = "coupon has not started yet"
	ReasonExpired     = "coupon has expired"
	ReasonUsageLimit  = "coupon usage limit reached"
	ReasonAlreadyUsed = "you have already used this coupon"
)

var hundred = decimal.NewFromInt(100)

// UsageCounter counts a user's orders in the given statuses that used a coupon
type UsageCounter interface {
	CountByUserAndCoupon(ctx context.Context, userID, couponID uuid.UUID, statuses []domain.OrderStatus) (int, error)
}

// Result is the outcome of a validation. Reason is empty when Valid.
type Result struct {
	Valid  bool
	Reason string
}

type Validator struct {
	usage UsageCounter
	now   func() time.Time
}

// NewValidator creates a validator. now defaults to time.Now.
func NewValidator(usage UsageCounter, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{usage: usage, now: now}
}

// IsValidFor runs the eligibility checks in order and stops at the first
// failure. A nil userID is a guest checkout and skips the per-user cap.
// The error is only set when the usage history could not be read.
func (v *Validator) IsValidFor(ctx context.Context, c *domain.Coupon, userID *uuid.UUID, subtotal decimal.Decimal) (Result, error) {
	now := v.now()

	if !c.Active {
		return invalid(ReasonInactive), nil
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return invalid(ReasonNotStarted), nil
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return invalid(ReasonExpired), nil
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return invalid(ReasonUsageLimit), nil
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return invalid(fmt.Sprintf("cart total needs to be at least %s to apply this coupon", c.MinOrderAmount.StringFixed(2))), nil
	}

	if userID != nil {
		used, err := v.usage.CountByUserAndCoupon(ctx, *userID, c.ID, domain.CompletedOrderStatuses)
		if err != nil {
			return Result{}, err
		}
		if used >= c.MaxUsesPerUser {
			return invalid(ReasonAlreadyUsed), nil
		}
	}

	return Result{Valid: true}, nil
}

// CalculateDiscount returns the amount taken off subtotal, rounded to cents
// and never more than the subtotal itself
func CalculateDiscount(c *domain.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.Kind {
	case domain.DiscountKindPercentage:
		amount = subtotal.Mul(c.Value).Div(hundred)
	case domain.DiscountKindFixed:
		amount = c.Value
	}

	amount = amount.Round(2)
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount
}

// NormalizeCode trims and upper-cases a code as entered by a customer
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func invalid(reason string) Result {
	return Result{Valid: false, Reason: reason}
}
