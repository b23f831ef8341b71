package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/storefront/internal/coupon"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

func TestCouponPreview(t *testing.T) {
	f := newFixture(t)
	a := f.product("Product A", "28.00", 5)
	b := f.product("Product B", "34.00", 5, percentOff("Spring sale", "15"))
	f.coupon("TENOFF", domain.DiscountKindPercentage, "10", "50.00", nil)

	preview, err := f.coupons.Preview(context.Background(), &f.user, CouponCheckInput{
		Code:  " tenoff ",
		Items: []CartItem{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, "TENOFF", preview.Code)
	assert.Equal(t, "85.80", preview.Subtotal.StringFixed(2))
	assert.Equal(t, "8.58", preview.Discount.StringFixed(2))
	assert.Equal(t, "77.22", preview.NewTotal.StringFixed(2))

	// nothing reserved or redeemed
	c, _ := f.store.Coupon("TENOFF")
	assert.Zero(t, c.CurrentUses)
	current, _ := f.store.Product(b.ID)
	assert.Equal(t, 5, current.Stock)
}

func TestCouponPreview_Rejections(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "10.00", 5)
	f.coupon("BIG", domain.DiscountKindFixed, "20.00", "100.00", nil)
	zero := 0
	f.coupon("GONE", domain.DiscountKindFixed, "1.00", "0", &zero)

	tests := []struct {
		code   string
		reason string
	}{
		{"NOPE", "coupon code does not exist"},
		{"BIG", "cart total needs to be at least 100.00 to apply this coupon"},
		{"GONE", coupon.ReasonUsageLimit},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := f.coupons.Preview(context.Background(), nil, CouponCheckInput{
				Code:  tt.code,
				Items: []CartItem{{ProductID: p.ID, Quantity: 1}},
			})
			var couponErr *errors.ErrCouponInvalid
			require.ErrorAs(t, err, &couponErr)
			assert.Equal(t, tt.reason, couponErr.Reason)
		})
	}
}

func TestCouponPreview_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.coupons.Preview(context.Background(), nil, CouponCheckInput{Code: " "})
	var verr *errors.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "code")
	assert.Contains(t, verr.Fields, "items")

	_, err = f.coupons.Preview(context.Background(), nil, CouponCheckInput{
		Code:  "X",
		Items: []CartItem{{ProductID: uuid.New(), Quantity: 1}},
	})
	var nf *errors.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestCouponPreview_ArchivedProduct(t *testing.T) {
	f := newFixture(t)
	p := f.product("Mug", "60.00", 5)
	f.store.AddProduct(&domain.Product{ID: p.ID, Name: p.Name, Status: domain.ProductStatusArchived, Price: p.Price, VATRate: p.VATRate, Stock: 5})
	f.coupon("TENOFF", domain.DiscountKindPercentage, "10", "0", nil)

	_, err := f.coupons.Preview(context.Background(), nil, CouponCheckInput{
		Code:  "TENOFF",
		Items: []CartItem{{ProductID: p.ID, Quantity: 1}},
	})
	var nf *errors.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, p.ID.String(), nf.ID)
}
