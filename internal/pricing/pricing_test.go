package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/storefront/internal/domain"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func discount(kind domain.DiscountKind, value string) domain.Discount {
	return domain.Discount{ID: uuid.New(), Name: string(kind) + " " + value, Kind: kind, Value: dec(value), Active: true}
}

func TestCurrentPrice_NoDiscounts(t *testing.T) {
	p := &domain.Product{Price: dec("28.00"), VATRate: dec("20")}

	q := CurrentPrice(p, now)

	assert.True(t, q.Gross.Equal(dec("28.00")))
	assert.Nil(t, q.Discount)
	assert.True(t, q.UnitDiscount.IsZero())
	assert.True(t, q.Net.Round(2).Equal(dec("23.33")))
}

func TestCurrentPrice_PicksLowestCandidate(t *testing.T) {
	pct := discount(domain.DiscountKindPercentage, "20")
	fixed := discount(domain.DiscountKindFixed, "8.00")
	p := &domain.Product{Price: dec("30.00"), VATRate: dec("20"), Discounts: []domain.Discount{pct, fixed}}

	q := CurrentPrice(p, now)

	assert.True(t, q.Gross.Equal(dec("22.00")), "got %s", q.Gross)
	require.NotNil(t, q.Discount)
	assert.Equal(t, fixed.ID, q.Discount.ID)
	assert.True(t, q.UnitDiscount.Equal(dec("8.00")))
}

func TestCurrentPrice_TieKeepsFirstDiscount(t *testing.T) {
	a := discount(domain.DiscountKindPercentage, "10")
	b := discount(domain.DiscountKindFixed, "3.00")
	p := &domain.Product{Price: dec("30.00"), VATRate: dec("0"), Discounts: []domain.Discount{a, b}}

	q := CurrentPrice(p, now)

	require.NotNil(t, q.Discount)
	assert.Equal(t, a.ID, q.Discount.ID)
	assert.True(t, q.Gross.Equal(dec("27.00")))
}

func TestCurrentPrice_FixedDiscountClampsAtZero(t *testing.T) {
	p := &domain.Product{Price: dec("5.00"), VATRate: dec("20"), Discounts: []domain.Discount{discount(domain.DiscountKindFixed, "9.00")}}

	q := CurrentPrice(p, now)

	assert.True(t, q.Gross.IsZero())
	assert.True(t, q.Net.IsZero())
	assert.True(t, q.UnitDiscount.Equal(dec("5.00")))
}

func TestCurrentPrice_SkipsInvalidDiscounts(t *testing.T) {
	past := now.Add(-48 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	inactive := discount(domain.DiscountKindPercentage, "50")
	inactive.Active = false
	expired := discount(domain.DiscountKindPercentage, "50")
	expired.StartsAt, expired.EndsAt = &past, &yesterday
	notStarted := discount(domain.DiscountKindPercentage, "50")
	notStarted.StartsAt = &tomorrow

	p := &domain.Product{Price: dec("10.00"), VATRate: dec("20"), Discounts: []domain.Discount{inactive, expired, notStarted}}

	q := CurrentPrice(p, now)

	assert.True(t, q.Gross.Equal(dec("10.00")))
	assert.Nil(t, q.Discount)
}

func TestCurrentPrice_WindowBoundsAreInclusive(t *testing.T) {
	start := now
	end := now
	d := discount(domain.DiscountKindPercentage, "15")
	d.StartsAt, d.EndsAt = &start, &end
	p := &domain.Product{Price: dec("34.00"), VATRate: dec("20"), Discounts: []domain.Discount{d}}

	q := CurrentPrice(p, now)

	assert.True(t, q.Gross.Equal(dec("28.90")), "got %s", q.Gross)
}

func TestCurrentPrice_RoundsHalfUp(t *testing.T) {
	// 9.99 * 0.85 = 8.4915
	p := &domain.Product{Price: dec("9.99"), VATRate: dec("20"), Discounts: []domain.Discount{discount(domain.DiscountKindPercentage, "15")}}
	assert.True(t, CurrentPrice(p, now).Gross.Equal(dec("8.49")))

	// 0.05 * 0.5 = 0.025
	p = &domain.Product{Price: dec("0.05"), VATRate: dec("0"), Discounts: []domain.Discount{discount(domain.DiscountKindPercentage, "50")}}
	assert.True(t, CurrentPrice(p, now).Gross.Equal(dec("0.03")))
}

func TestNetFromGross_RoundTrip(t *testing.T) {
	grosses := []string{"0.01", "1.00", "22.00", "28.90", "99.99", "1234.56"}
	rates := []string{"0", "5.5", "7", "19", "20", "25"}
	tolerance := dec("0.01")

	for _, g := range grosses {
		for _, r := range rates {
			gross, rate := dec(g), dec(r)
			net := NetFromGross(gross, rate)
			rebuilt := net.Mul(one.Add(rate.Div(hundred)))
			assert.True(t, rebuilt.Sub(gross).Abs().LessThanOrEqual(tolerance), "gross %s rate %s rebuilt %s", g, r, rebuilt)
		}
	}
}
