package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus tracks a loan through its lifecycle. Transitions are strictly
// forward: Pending -> Approved -> Disbursed -> Closed or WrittenOff.
type LoanStatus string

const (
	StatusPending    LoanStatus = "pending"
	StatusApproved   LoanStatus = "approved"
	StatusDisbursed  LoanStatus = "disbursed"
	StatusClosed     LoanStatus = "closed"
	StatusWrittenOff LoanStatus = "written_off"
)

// Terminal reports whether the loan can undergo no further transitions.
func (s LoanStatus) Terminal() bool {
	return s == StatusClosed || s == StatusWrittenOff
}

// RepaymentFrequency determines how often installments fall due.
type RepaymentFrequency string

const (
	FrequencyDaily    RepaymentFrequency = "daily"
	FrequencyWeekly   RepaymentFrequency = "weekly"
	FrequencyBiweekly RepaymentFrequency = "biweekly"
	FrequencyMonthly  RepaymentFrequency = "monthly"
)

// ParseFrequency maps a request string to a RepaymentFrequency. Unknown
// values are rejected rather than defaulted.
func ParseFrequency(s string) (RepaymentFrequency, error) {
	f := RepaymentFrequency(strings.ToLower(s))
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFrequency, s)
}

// InstallmentsPerMonth returns how many installments one month of term
// expands to. The multipliers (30/4/2/1) are a fixed approximation, not
// calendar-exact.
func (f RepaymentFrequency) InstallmentsPerMonth() (int, error) {
	switch f {
	case FrequencyDaily:
		return 30, nil
	case FrequencyWeekly:
		return 4, nil
	case FrequencyBiweekly:
		return 2, nil
	case FrequencyMonthly:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, f)
}

// AddPeriods advances t by n repayment periods.
func (f RepaymentFrequency) AddPeriods(t time.Time, n int) (time.Time, error) {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, n), nil
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7*n), nil
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14*n), nil
	case FrequencyMonthly:
		return t.AddDate(0, n, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, f)
}

// InterestMethod selects how scheduled interest is computed.
type InterestMethod string

const (
	InterestFlat      InterestMethod = "flat"
	InterestDeclining InterestMethod = "declining"
)

// ParseInterestMethod maps a request string to an InterestMethod, rejecting
// unknown values.
func ParseInterestMethod(s string) (InterestMethod, error) {
	m := InterestMethod(strings.ToLower(s))
	switch m {
	case InterestFlat, InterestDeclining:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedInterestMethod, s)
}

// LoanProduct is the configuration a loan is opened against. It is the
// source of truth for the interest method and the penalty rate applied to
// overdue installments.
type LoanProduct struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	InterestMethod     InterestMethod  `json:"interest_method"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate"` // percent, e.g. 12 = 12% APR
	PenaltyRate        decimal.Decimal `json:"penalty_rate"`         // fraction of overdue outstanding charged per payment
	CreatedAt          time.Time       `json:"created_at"`
}

// LoanAccount is the aggregate the engine mutates. Version implements
// optimistic concurrency: every successful update increments it, and stale
// writers are rejected at commit.
type LoanAccount struct {
	ID                    uuid.UUID          `json:"id"`
	LoanNumber            string             `json:"loan_number"`
	ProductID             uuid.UUID          `json:"product_id"`
	Principal             decimal.Decimal    `json:"principal_amount"`
	AnnualInterestRate    decimal.Decimal    `json:"annual_interest_rate"` // percent
	TermMonths            int                `json:"term_months"`
	Frequency             RepaymentFrequency `json:"repayment_frequency"`
	InterestMethod        InterestMethod     `json:"interest_method"`
	Status                LoanStatus         `json:"status"`
	OutstandingPrincipal  decimal.Decimal    `json:"outstanding_principal"`
	OutstandingInterest   decimal.Decimal    `json:"outstanding_interest"`
	DisbursementDate      *time.Time         `json:"disbursement_date,omitempty"`
	ExpectedEndDate       *time.Time         `json:"expected_end_date,omitempty"`
	DisbursementMethod    string             `json:"disbursement_method,omitempty"`
	DisbursementReference string             `json:"disbursement_reference,omitempty"`
	Version               int64              `json:"version"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// TotalOutstanding is the sum of outstanding principal and interest.
func (l *LoanAccount) TotalOutstanding() decimal.Decimal {
	return l.OutstandingPrincipal.Add(l.OutstandingInterest)
}

// ScheduleItem is one installment of a loan's amortization schedule.
// Items are created exactly once at disbursement and mutated only by
// repayment application.
type ScheduleItem struct {
	ID           uuid.UUID       `json:"id"`
	LoanID       uuid.UUID       `json:"loan_id"`
	Sequence     int             `json:"sequence_number"` // 1-based, dense within a loan
	DueDate      time.Time       `json:"due_date"`
	PrincipalDue decimal.Decimal `json:"principal_due"`
	InterestDue  decimal.Decimal `json:"interest_due"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Paid         bool            `json:"is_paid"`
	PaidDate     *time.Time      `json:"paid_date,omitempty"`
}

// TotalAmount is the installment's full obligation.
func (s *ScheduleItem) TotalAmount() decimal.Decimal {
	return s.PrincipalDue.Add(s.InterestDue)
}

// RemainingAmount is what is still owed on the installment.
func (s *ScheduleItem) RemainingAmount() decimal.Decimal {
	return s.TotalAmount().Sub(s.PaidAmount)
}

// RemainingInterest derives the unpaid interest portion of the installment.
// Payments fill an installment's interest before its principal, so the
// amount paid so far counts against InterestDue first.
func (s *ScheduleItem) RemainingInterest() decimal.Decimal {
	paidInterest := decimal.Min(s.PaidAmount, s.InterestDue)
	return s.InterestDue.Sub(paidInterest)
}

// Repayment is an immutable receipt. Corrections are made by recording new
// repayments, never by editing existing rows.
type Repayment struct {
	ID                   uuid.UUID       `json:"id"`
	LoanID               uuid.UUID       `json:"loan_id"`
	ReceiptNumber        string          `json:"receipt_number"`
	Amount               decimal.Decimal `json:"amount"`
	PrincipalPaid        decimal.Decimal `json:"principal_paid"`
	InterestPaid         decimal.Decimal `json:"interest_paid"`
	PenaltyPaid          decimal.Decimal `json:"penalty_paid"`
	PaymentMethod        string          `json:"payment_method"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	RepaymentDate        time.Time       `json:"repayment_date"`
}
