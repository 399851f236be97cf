// Package schedule generates amortization schedules at disbursement time.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openmfi/loancore/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

const moneyDigits = int32(2)

// Generate produces the ordered installment list for a loan. The schedule is
// exact: per-installment amounts are rounded to two decimal places and any
// rounding remainder is folded into the final installment, so the principal
// columns always sum to exactly the loan principal.
//
// For non-monthly frequencies the declining method still applies a monthly
// rate per period; that is a known simplification of the product rules.
func Generate(principal, annualRatePercent decimal.Decimal, termMonths int, frequency models.RepaymentFrequency, method models.InterestMethod, disbursementDate time.Time) ([]*models.ScheduleItem, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: principal must be positive, got %s", models.ErrInvalidAmount, principal)
	}
	if annualRatePercent.IsNegative() {
		return nil, fmt.Errorf("%w: interest rate must not be negative, got %s", models.ErrInvalidAmount, annualRatePercent)
	}
	if termMonths <= 0 {
		return nil, fmt.Errorf("%w: term must be positive, got %d months", models.ErrInvalidAmount, termMonths)
	}

	perMonth, err := frequency.InstallmentsPerMonth()
	if err != nil {
		return nil, err
	}
	count := termMonths * perMonth

	principals, err := splitPrincipal(principal, count)
	if err != nil {
		return nil, err
	}

	var interests []decimal.Decimal
	switch method {
	case models.InterestFlat:
		interests = flatInterest(principal, annualRatePercent, termMonths, count)
	case models.InterestDeclining:
		interests = decliningInterest(principal, annualRatePercent, principals)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedInterestMethod, method)
	}

	items := make([]*models.ScheduleItem, 0, count)
	for k := 1; k <= count; k++ {
		dueDate, err := frequency.AddPeriods(disbursementDate, k)
		if err != nil {
			return nil, err
		}
		items = append(items, &models.ScheduleItem{
			ID:           uuid.New(),
			Sequence:     k,
			DueDate:      dueDate,
			PrincipalDue: principals[k-1],
			InterestDue:  interests[k-1],
			PaidAmount:   decimal.Zero,
		})
	}
	return items, nil
}

// splitPrincipal divides the principal evenly across count installments,
// with the final installment absorbing the rounding remainder. The share is
// truncated, not rounded, so the remainder is never negative.
func splitPrincipal(principal decimal.Decimal, count int) ([]decimal.Decimal, error) {
	share := principal.Div(decimal.NewFromInt(int64(count))).RoundDown(moneyDigits)
	shares := make([]decimal.Decimal, count)
	allocated := decimal.Zero
	for i := 0; i < count-1; i++ {
		shares[i] = share
		allocated = allocated.Add(share)
	}
	last := principal.Sub(allocated)
	if last.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: principal %s too small to split across %d installments", models.ErrInvalidAmount, principal, count)
	}
	shares[count-1] = last
	return shares, nil
}

// flatInterest computes total interest on the original principal and spreads
// it evenly, remainder to the final installment.
func flatInterest(principal, ratePercent decimal.Decimal, termMonths, count int) []decimal.Decimal {
	total := principal.
		Mul(ratePercent).Div(hundred).
		Mul(decimal.NewFromInt(int64(termMonths))).Div(twelve).
		Round(moneyDigits)
	// Truncate the share so the remainder left for the final installment
	// stays non-negative even on dense (daily) schedules.
	share := total.Div(decimal.NewFromInt(int64(count))).RoundDown(moneyDigits)

	interests := make([]decimal.Decimal, count)
	allocated := decimal.Zero
	for i := 0; i < count-1; i++ {
		interests[i] = share
		allocated = allocated.Add(share)
	}
	interests[count-1] = total.Sub(allocated)
	return interests
}

// decliningInterest charges each period's interest on the balance still
// outstanding at the start of that period.
func decliningInterest(principal, ratePercent decimal.Decimal, principals []decimal.Decimal) []decimal.Decimal {
	monthlyRate := ratePercent.Div(hundred).Div(twelve)
	interests := make([]decimal.Decimal, len(principals))
	balance := principal
	for i, share := range principals {
		interests[i] = balance.Mul(monthlyRate).Round(moneyDigits)
		balance = balance.Sub(share)
	}
	return interests
}
