// Package pricing computes the payable price of a product from its base
// price and its currently valid discounts.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Quote is the price of a single unit at a point in time
type Quote struct {
	Base         decimal.Decimal
	Gross        decimal.Decimal
	Net          decimal.Decimal
	VATRate      decimal.Decimal
	Discount     *domain.Discount // nil when no discount applies
	UnitDiscount decimal.Decimal
}

// CurrentPrice returns the lowest price obtainable from the product's
// valid discounts at the given instant. Gross and UnitDiscount are rounded
// to cents; Net is derived from the rounded gross and left unrounded.
func CurrentPrice(p *domain.Product, at time.Time) Quote {
	base := p.Price
	gross := base
	var best *domain.Discount

	for i := range p.Discounts {
		d := &p.Discounts[i]
		if !IsDiscountValid(d, at) {
			continue
		}
		candidate := applyDiscount(base, d)
		if best == nil || candidate.LessThan(gross) {
			gross = candidate
			best = d
		}
	}

	gross = gross.Round(2)
	return Quote{
		Base:         base,
		Gross:        gross,
		Net:          NetFromGross(gross, p.VATRate),
		VATRate:      p.VATRate,
		Discount:     best,
		UnitDiscount: base.Sub(gross).Round(2),
	}
}

// IsDiscountValid reports whether the discount is active and inside its window
func IsDiscountValid(d *domain.Discount, at time.Time) bool {
	if !d.Active {
		return false
	}
	if d.StartsAt != nil && at.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && at.After(*d.EndsAt) {
		return false
	}
	return true
}

// NetFromGross removes VAT at the given percentage rate
func NetFromGross(gross, vatRate decimal.Decimal) decimal.Decimal {
	return gross.Div(one.Add(vatRate.Div(hundred)))
}

func applyDiscount(base decimal.Decimal, d *domain.Discount) decimal.Decimal {
	switch d.Kind {
	case domain.DiscountKindPercentage:
		return base.Mul(one.Sub(d.Value.Div(hundred)))
	case domain.DiscountKindFixed:
		return decimal.Max(decimal.Zero, base.Sub(d.Value))
	default:
		return base
	}
}
