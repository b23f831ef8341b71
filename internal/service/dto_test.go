package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/storefront/pkg/errors"
)

func TestCreateOrderInput_Normalizes(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	in := checkoutInput(
		CartItem{ProductID: a, Quantity: 1},
		CartItem{ProductID: b, Quantity: 2},
		CartItem{ProductID: a, Quantity: 4},
	)
	code := "  save20 "
	blank := "   "
	in.CouponCode = &code
	in.ShippingAddress.Line2 = &blank
	in.PaymentReference = " pi_1 "

	require.NoError(t, in.Validate())

	require.Len(t, in.Items, 2)
	assert.Equal(t, CartItem{ProductID: a, Quantity: 5}, in.Items[0])
	assert.Equal(t, CartItem{ProductID: b, Quantity: 2}, in.Items[1])
	assert.Equal(t, "SAVE20", *in.CouponCode)
	assert.Nil(t, in.ShippingAddress.Line2)
	assert.Equal(t, "FR", in.ShippingAddress.Country)
	assert.Equal(t, "pi_1", in.PaymentReference)
}

func TestCreateOrderInput_Rejects(t *testing.T) {
	tests := map[string]struct {
		mutate func(in *CreateOrderInput)
		field  string
	}{
		"no items":         {func(in *CreateOrderInput) { in.Items = nil }, "items"},
		"missing product":  {func(in *CreateOrderInput) { in.Items[0].ProductID = uuid.Nil }, "items[0].product_id"},
		"negative qty":     {func(in *CreateOrderInput) { in.Items[0].Quantity = -1 }, "items[0].quantity"},
		"huge qty":         {func(in *CreateOrderInput) { in.Items[0].Quantity = maxLineQuantity + 1 }, "items"},
		"billing postcode": {func(in *CreateOrderInput) { in.BillingAddress.PostalCode = "" }, "billing_address.postal_code"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			in := checkoutInput(CartItem{ProductID: uuid.New(), Quantity: 1})
			tt.mutate(&in)

			err := in.Validate()
			var verr *errors.ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestCreateOrderInput_EmptyCouponIsNone(t *testing.T) {
	in := checkoutInput(CartItem{ProductID: uuid.New(), Quantity: 1})
	empty := ""
	in.CouponCode = &empty

	require.NoError(t, in.Validate())
	assert.Nil(t, in.CouponCode)
}
