package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/coupon"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// CouponPreview is what a coupon would do to a cart right now
type CouponPreview struct {
	Code        string          `json:"code"`
	Description *string         `json:"description,omitempty"`
	Kind        string          `json:"kind"`
	Value       string          `json:"value"`
	Subtotal    decimal.Decimal `json:"-"`
	Discount    decimal.Decimal `json:"-"`
	NewTotal    decimal.Decimal `json:"-"`
}

type CouponService struct {
	tx     repository.Transactor
	now    func() time.Time
	logger *zap.Logger
}

// NewCouponService creates a new coupon service
func NewCouponService(tx repository.Transactor, logger *zap.Logger) *CouponService {
	return &CouponService{
		tx:     tx,
		now:    time.Now,
		logger: logger,
	}
}

// Preview prices the cart with current product prices and reports what the
// coupon would take off. Nothing is locked or redeemed, so the checkout may
// still reject the coupon. A nil userID previews as a guest.
func (s *CouponService) Preview(ctx context.Context, userID *uuid.UUID, in CouponCheckInput) (*CouponPreview, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	at := s.now()
	var preview *CouponPreview

	err := repository.RunInTx(ctx, s.tx, func(ctx context.Context, repos *repository.Repositories) error {
		products := make(map[uuid.UUID]*domain.Product, len(in.Items))
		for _, item := range in.Items {
			p, err := repos.Product.GetByID(ctx, item.ProductID)
			if err != nil {
				return storageErr("get product", err)
			}
			if err := ensureListed(p); err != nil {
				return err
			}
			products[item.ProductID] = p
		}
		_, totals := priceLines(in.Items, products, at)

		c, err := repos.Coupon.GetByCode(ctx, in.Code)
		if err != nil {
			var nf *errors.ErrNotFound
			if stderrors.As(err, &nf) {
				return &errors.ErrCouponInvalid{Code: in.Code, Reason: reasonUnknownCoupon}
			}
			return storageErr("get coupon", err)
		}

		result, err := coupon.NewValidator(repos.Order, s.now).IsValidFor(ctx, c, userID, totals.Gross)
		if err != nil {
			return storageErr("count coupon usage", err)
		}
		if !result.Valid {
			return &errors.ErrCouponInvalid{Code: c.Code, Reason: result.Reason}
		}

		discount := coupon.CalculateDiscount(c, totals.Gross)
		preview = &CouponPreview{
			Code:        c.Code,
			Description: c.Description,
			Kind:        string(c.Kind),
			Value:       c.Value.String(),
			Subtotal:    totals.Gross,
			Discount:    discount,
			NewTotal:    orderTotal(totals.Gross, discount, decimal.Zero),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return preview, nil
}
