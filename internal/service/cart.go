package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/pricing"
	"github.com/jafarshop/storefront/pkg/errors"
)

// ensureListed refuses products that are no longer sold. Archived products
// look missing to shoppers.
func ensureListed(p *domain.Product) error {
	if p.Status != domain.ProductStatusActive {
		return &errors.ErrNotFound{Resource: "product", ID: p.ID.String()}
	}
	return nil
}

// cartTotals sums the priced lines of a cart, before coupon and shipping
type cartTotals struct {
	Gross    decimal.Decimal
	Net      decimal.Decimal
	VAT      decimal.Decimal
	Discount decimal.Decimal
}

// priceLines snapshots every cart line at the given instant. Lines keep
// the cart order. products must hold every product in items.
func priceLines(items []CartItem, products map[uuid.UUID]*domain.Product, at time.Time) ([]*domain.OrderItem, cartTotals) {
	lines := make([]*domain.OrderItem, 0, len(items))
	totals := cartTotals{
		Gross:    decimal.Zero,
		Net:      decimal.Zero,
		VAT:      decimal.Zero,
		Discount: decimal.Zero,
	}

	for _, item := range items {
		p := products[item.ProductID]
		quote := pricing.CurrentPrice(p, at)
		qty := decimal.NewFromInt(int64(item.Quantity))

		lineGross := quote.Gross.Mul(qty)
		lineNet := quote.Net.Mul(qty).Round(2)
		lineVAT := lineGross.Sub(lineNet)
		lineDiscount := quote.UnitDiscount.Mul(qty)

		productID := p.ID
		lines = append(lines, &domain.OrderItem{
			ProductID:           &productID,
			ProductName:         p.Name,
			Quantity:            item.Quantity,
			UnitPrice:           quote.Gross,
			UnitPriceNet:        quote.Net.Round(2),
			VATRate:             quote.VATRate,
			VATAmount:           lineVAT,
			TotalPrice:          lineGross,
			DiscountAmount:      lineDiscount,
			DiscountDescription: describeDiscount(quote.Discount),
		})

		totals.Gross = totals.Gross.Add(lineGross)
		totals.Net = totals.Net.Add(lineNet)
		totals.VAT = totals.VAT.Add(lineVAT)
		totals.Discount = totals.Discount.Add(lineDiscount)
	}

	return lines, totals
}

func describeDiscount(d *domain.Discount) *string {
	if d == nil {
		return nil
	}
	var desc string
	switch d.Kind {
	case domain.DiscountKindPercentage:
		desc = fmt.Sprintf("%s (-%s%%)", d.Name, d.Value.String())
	default:
		desc = fmt.Sprintf("%s (-%s)", d.Name, d.Value.StringFixed(2))
	}
	return &desc
}

// orderTotal is never negative
func orderTotal(subtotal, couponDiscount, shipping decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(couponDiscount).Add(shipping).Round(2)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
