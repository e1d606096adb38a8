// Package loan implements the EMI calculator and the loan application
// lifecycle: PENDING at creation, moved once to APPROVED or REJECTED by a
// reviewer, terminal after that.
package loan

import (
	"fmt"

	"github.com/shopspring/decimal"

	"banking-core/pkg/bank"
)

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// ComputeEMI returns the fixed monthly installment for an amortizing loan:
//
//	r = annualRatePercent / 12 / 100
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1), or P/n when r is zero.
//
// The result is rounded to 2 decimal places, round-half-up (half away
// from zero), the conventional choice for currency. The function is pure
// and deterministic; the lifecycle computes it exactly once per
// application and treats the stored value as authoritative afterwards.
func ComputeEMI(principal, annualRatePercent decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("principal %s: %w", principal, bank.ErrInvalidAmount)
	}
	if tenureMonths <= 0 {
		return decimal.Zero, fmt.Errorf("tenure %d months: %w", tenureMonths, bank.ErrInvalidLoanTerms)
	}
	if annualRatePercent.IsNegative() {
		return decimal.Zero, fmt.Errorf("interest rate %s: %w", annualRatePercent, bank.ErrInvalidLoanTerms)
	}

	months := decimal.NewFromInt(int64(tenureMonths))
	monthlyRate := annualRatePercent.Div(twelve).Div(hundred)
	if monthlyRate.IsZero() {
		return principal.Div(months).Round(2), nil
	}

	compound := one.Add(monthlyRate).Pow(months)
	emi := principal.Mul(monthlyRate).Mul(compound).Div(compound.Sub(one))
	return emi.Round(2), nil
}
