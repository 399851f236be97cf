// Package allocation implements the repayment waterfall: penalty on overdue
// installments first, then outstanding interest, then principal.
package allocation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openmfi/loancore/pkg/models"
	"github.com/shopspring/decimal"
)

// Application records how much of a payment lands on one installment.
type Application struct {
	ItemID   uuid.UUID
	Sequence int
	Amount   decimal.Decimal
	Paid     bool // installment fully settled by this payment
}

// Result is the outcome of allocating one payment. The aggregate totals and
// the per-installment applications are produced by the same pass, so the two
// views cannot diverge.
type Result struct {
	PenaltyPaid   decimal.Decimal
	InterestPaid  decimal.Decimal
	PrincipalPaid decimal.Decimal
	Applications  []Application
}

// Allocate computes the waterfall split of a payment. It is a pure function
// of its inputs: no clock, no randomness, no mutation of items. Callers pass
// unpaid installments ordered by due date ascending.
//
// Penalty is charged on the total still owed on installments past due at
// paymentDate, at the product's penalty rate, capped by the payment itself.
// What remains settles interest across all installments before any
// principal. Payments that exceed the loan's total outstanding (after
// penalty) are rejected with ErrOverpayment.
func Allocate(amount decimal.Decimal, paymentDate time.Time, outstandingInterest, outstandingPrincipal, penaltyRate decimal.Decimal, items []*models.ScheduleItem) (Result, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Result{}, fmt.Errorf("%w: payment must be positive, got %s", models.ErrInvalidAmount, amount)
	}
	if penaltyRate.IsNegative() {
		return Result{}, fmt.Errorf("%w: penalty rate must not be negative, got %s", models.ErrInvalidAmount, penaltyRate)
	}

	overdue := decimal.Zero
	for _, item := range items {
		if item.DueDate.Before(paymentDate) {
			overdue = overdue.Add(item.RemainingAmount())
		}
	}

	penalty := decimal.Min(amount, overdue.Mul(penaltyRate).Round(2))
	remaining := amount.Sub(penalty)

	if remaining.GreaterThan(outstandingInterest.Add(outstandingPrincipal)) {
		return Result{}, fmt.Errorf("%w: %s against %s outstanding", models.ErrOverpayment, amount, outstandingInterest.Add(outstandingPrincipal))
	}

	interestPaid := decimal.Min(remaining, outstandingInterest)
	principalPaid := remaining.Sub(interestPaid)

	res := Result{
		PenaltyPaid:   penalty,
		InterestPaid:  interestPaid,
		PrincipalPaid: principalPaid,
		Applications:  applyToItems(interestPaid, principalPaid, items),
	}
	return res, nil
}

// applyToItems distributes the interest pool and then the principal pool
// over the installments in due-date order, producing one application per
// touched installment. Interest across all installments fills before any
// principal does, matching the aggregate waterfall.
func applyToItems(interestPool, principalPool decimal.Decimal, items []*models.ScheduleItem) []Application {
	applied := make([]decimal.Decimal, len(items))

	pool := interestPool
	for i, item := range items {
		if pool.IsZero() {
			break
		}
		share := decimal.Min(pool, item.RemainingInterest())
		applied[i] = applied[i].Add(share)
		pool = pool.Sub(share)
	}

	pool = principalPool
	for i, item := range items {
		if pool.IsZero() {
			break
		}
		principalRemaining := item.RemainingAmount().Sub(item.RemainingInterest())
		share := decimal.Min(pool, principalRemaining)
		applied[i] = applied[i].Add(share)
		pool = pool.Sub(share)
	}

	var apps []Application
	for i, item := range items {
		if applied[i].IsZero() {
			continue
		}
		apps = append(apps, Application{
			ItemID:   item.ID,
			Sequence: item.Sequence,
			Amount:   applied[i],
			Paid:     item.PaidAmount.Add(applied[i]).Equal(item.TotalAmount()),
		})
	}
	return apps
}
