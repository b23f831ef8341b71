package service

import (
	"context"

	"github.com/shopspring/decimal"
)

// ShippingRater quotes the shipping cost of a cart to an address
type ShippingRater interface {
	Rate(ctx context.Context, items []CartItem, destination AddressInput) (decimal.Decimal, error)
}

// FlatRate charges the same amount for every shipment
type FlatRate struct {
	Amount decimal.Decimal
}

func (f FlatRate) Rate(ctx context.Context, items []CartItem, destination AddressInput) (decimal.Decimal, error) {
	return f.Amount.Round(2), nil
}
