package payment

import (
	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/pkg/errors"
)

// ToleranceMinor is the largest accepted difference between the computed
// and the confirmed amount, in minor units
const ToleranceMinor = 1

var centsPerUnit = decimal.NewFromInt(100)

// ToMinorUnits converts an amount to cents, rounding to the nearest cent
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(centsPerUnit).Round(0).IntPart()
}

// Reconcile checks the computed total against the amount the gateway confirmed
func Reconcile(calculated decimal.Decimal, confirmedMinor int64) error {
	calculatedMinor := ToMinorUnits(calculated)
	diff := calculatedMinor - confirmedMinor
	if diff < 0 {
		diff = -diff
	}
	if diff > ToleranceMinor {
		return &errors.ErrSecurityMismatch{CalculatedMinor: calculatedMinor, ConfirmedMinor: confirmedMinor}
	}
	return nil
}
