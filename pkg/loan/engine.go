// Package loan holds the lifecycle engine: the loan state machine and the
// orchestration of schedule generation and repayment allocation against the
// storage layer.
package loan

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openmfi/loancore/pkg/allocation"
	"github.com/openmfi/loancore/pkg/metrics"
	"github.com/openmfi/loancore/pkg/models"
	"github.com/openmfi/loancore/pkg/schedule"
	"github.com/openmfi/loancore/pkg/store"
	"github.com/shopspring/decimal"
)

// Engine handles the business logic for loans, schedules and repayments.
type Engine struct {
	storage store.Storage
}

// NewEngine creates an Engine backed by the given Storage implementation.
func NewEngine(s store.Storage) *Engine {
	return &Engine{storage: s}
}

// CreateProduct registers a loan product. The product is the source of truth
// for the interest method and the penalty rate on overdue installments.
func (e *Engine) CreateProduct(name, interestMethod string, annualRatePercent, penaltyRate decimal.Decimal) (*models.LoanProduct, error) {
	method, err := models.ParseInterestMethod(interestMethod)
	if err != nil {
		return nil, err
	}
	if annualRatePercent.IsNegative() {
		return nil, fmt.Errorf("%w: interest rate must not be negative", models.ErrInvalidAmount)
	}
	if penaltyRate.IsNegative() {
		return nil, fmt.Errorf("%w: penalty rate must not be negative", models.ErrInvalidAmount)
	}

	product := &models.LoanProduct{
		ID:                 uuid.New(),
		Name:               name,
		InterestMethod:     method,
		AnnualInterestRate: annualRatePercent,
		PenaltyRate:        penaltyRate,
		CreatedAt:          time.Now(),
	}
	if err := e.storage.CreateProduct(product); err != nil {
		return nil, fmt.Errorf("failed to store product: %w", err)
	}
	return product, nil
}

// CreateLoan opens a Pending loan against a product. The interest method is
// copied from the product; the rate and term are per-loan.
func (e *Engine) CreateLoan(productID uuid.UUID, principal, annualRatePercent decimal.Decimal, termMonths int, frequency string) (*models.LoanAccount, error) {
	freq, err := models.ParseFrequency(frequency)
	if err != nil {
		return nil, err
	}
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: principal must be positive", models.ErrInvalidAmount)
	}
	if annualRatePercent.IsNegative() {
		return nil, fmt.Errorf("%w: interest rate must not be negative", models.ErrInvalidAmount)
	}
	if termMonths <= 0 {
		return nil, fmt.Errorf("%w: term must be positive", models.ErrInvalidAmount)
	}

	product, err := e.storage.GetProduct(productID)
	if err != nil {
		return nil, err
	}

	loan := &models.LoanAccount{
		ID:                   uuid.New(),
		LoanNumber:           loanNumber(),
		ProductID:            product.ID,
		Principal:            principal,
		AnnualInterestRate:   annualRatePercent,
		TermMonths:           termMonths,
		Frequency:            freq,
		InterestMethod:       product.InterestMethod,
		Status:               models.StatusPending,
		OutstandingPrincipal: decimal.Zero,
		OutstandingInterest:  decimal.Zero,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}
	if err := e.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return loan, nil
}

// Approve moves a Pending loan to Approved. No schedule is generated yet.
func (e *Engine) Approve(loanID uuid.UUID) (*models.LoanAccount, error) {
	loan, err := e.storage.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: cannot approve a %s loan", models.ErrInvalidStateTransition, loan.Status)
	}

	loan.Status = models.StatusApproved
	loan.UpdatedAt = time.Now()
	if err := e.storage.UpdateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	return loan, nil
}

// Disburse releases the funds of an Approved loan: it generates the
// amortization schedule, books the full scheduled principal and interest as
// outstanding, and persists loan and installments in one transaction. The
// disbursement date and expected end date are set here and never change.
func (e *Engine) Disburse(loanID uuid.UUID, disbursementDate time.Time, method, transactionReference, notes string) (*models.LoanAccount, []*models.ScheduleItem, error) {
	loan, err := e.storage.GetLoan(loanID)
	if err != nil {
		return nil, nil, err
	}
	if loan.Status != models.StatusApproved {
		return nil, nil, fmt.Errorf("%w: cannot disburse a %s loan", models.ErrInvalidStateTransition, loan.Status)
	}

	items, err := schedule.Generate(loan.Principal, loan.AnnualInterestRate, loan.TermMonths, loan.Frequency, loan.InterestMethod, disbursementDate)
	if err != nil {
		return nil, nil, err
	}

	totalInterest := decimal.Zero
	for _, item := range items {
		item.LoanID = loan.ID
		totalInterest = totalInterest.Add(item.InterestDue)
	}

	endDate := disbursementDate.AddDate(0, loan.TermMonths, 0)
	loan.Status = models.StatusDisbursed
	loan.DisbursementDate = &disbursementDate
	loan.ExpectedEndDate = &endDate
	loan.DisbursementMethod = method
	loan.DisbursementReference = transactionReference
	loan.OutstandingPrincipal = loan.Principal
	loan.OutstandingInterest = totalInterest
	loan.UpdatedAt = time.Now()

	if err := e.storage.RecordDisbursement(loan, items); err != nil {
		return nil, nil, fmt.Errorf("failed to record disbursement: %w", err)
	}
	if notes != "" {
		log.Printf("Disbursed loan %s (%s): %s", loan.LoanNumber, loan.ID, notes)
	}

	metrics.DisbursementsTotal.Inc()
	return loan, items, nil
}

// CreateRepayment allocates a payment across penalty, interest and principal
// and persists the receipt together with the updated loan and installments.
// The loan must be Disbursed with a positive outstanding balance. The
// aggregate totals and the per-installment updates come from a single
// allocation pass. The returned loan carries the committed post-repayment
// balances.
func (e *Engine) CreateRepayment(loanID uuid.UUID, amount decimal.Decimal, paymentDate time.Time, paymentMethod, transactionReference, notes string) (*models.Repayment, *models.LoanAccount, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, fmt.Errorf("%w: payment must be positive, got %s", models.ErrInvalidAmount, amount)
	}

	loan, err := e.storage.GetLoan(loanID)
	if err != nil {
		return nil, nil, err
	}
	if loan.Status != models.StatusDisbursed {
		return nil, nil, fmt.Errorf("%w: cannot repay a %s loan", models.ErrInvalidStateTransition, loan.Status)
	}
	if !loan.TotalOutstanding().IsPositive() {
		return nil, nil, fmt.Errorf("%w: loan has no outstanding balance", models.ErrInvalidStateTransition)
	}

	product, err := e.storage.GetProduct(loan.ProductID)
	if err != nil {
		return nil, nil, err
	}
	items, err := e.storage.GetUnpaidScheduleItems(loanID)
	if err != nil {
		return nil, nil, err
	}

	res, err := allocation.Allocate(amount, paymentDate, loan.OutstandingInterest, loan.OutstandingPrincipal, product.PenaltyRate, items)
	if err != nil {
		return nil, nil, err
	}

	newInterest := loan.OutstandingInterest.Sub(res.InterestPaid)
	newPrincipal := loan.OutstandingPrincipal.Sub(res.PrincipalPaid)
	if newInterest.IsNegative() || newPrincipal.IsNegative() {
		// A negative balance means the allocator and the aggregate disagree;
		// reject instead of clamping so the divergence surfaces.
		return nil, nil, fmt.Errorf("%w: allocation would drive outstanding balance negative", models.ErrInvalidAmount)
	}
	loan.OutstandingInterest = newInterest
	loan.OutstandingPrincipal = newPrincipal
	if loan.TotalOutstanding().IsZero() {
		loan.Status = models.StatusClosed
	}
	loan.UpdatedAt = time.Now()

	updated := applyApplications(items, res.Applications, paymentDate)

	repayment := &models.Repayment{
		ID:                   uuid.New(),
		LoanID:               loan.ID,
		ReceiptNumber:        receiptNumber(),
		Amount:               amount,
		PrincipalPaid:        res.PrincipalPaid,
		InterestPaid:         res.InterestPaid,
		PenaltyPaid:          res.PenaltyPaid,
		PaymentMethod:        paymentMethod,
		TransactionReference: transactionReference,
		Notes:                notes,
		RepaymentDate:        paymentDate,
	}

	if err := e.storage.RecordRepayment(loan, updated, repayment); err != nil {
		if errors.Is(err, models.ErrVersionConflict) {
			metrics.RepaymentConflictsTotal.Inc()
		}
		return nil, nil, fmt.Errorf("failed to record repayment: %w", err)
	}

	metrics.RepaymentsTotal.Inc()
	return repayment, loan, nil
}

// applyApplications mutates the loaded installments with the allocator's
// per-item amounts and returns only the changed ones.
func applyApplications(items []*models.ScheduleItem, apps []allocation.Application, paymentDate time.Time) []*models.ScheduleItem {
	byID := make(map[uuid.UUID]*models.ScheduleItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	var updated []*models.ScheduleItem
	for _, app := range apps {
		item, ok := byID[app.ItemID]
		if !ok {
			continue
		}
		item.PaidAmount = item.PaidAmount.Add(app.Amount)
		if app.Paid {
			item.Paid = true
			d := paymentDate
			item.PaidDate = &d
		}
		updated = append(updated, item)
	}
	return updated
}

// GetLoan retrieves a loan by its ID.
func (e *Engine) GetLoan(id uuid.UUID) (*models.LoanAccount, error) {
	return e.storage.GetLoan(id)
}

// GetAllLoans retrieves all loans.
func (e *Engine) GetAllLoans() ([]*models.LoanAccount, error) {
	return e.storage.GetAllLoans()
}

// GetProduct retrieves a loan product by its ID.
func (e *Engine) GetProduct(id uuid.UUID) (*models.LoanProduct, error) {
	return e.storage.GetProduct(id)
}

// GetSchedule retrieves a loan's full amortization schedule.
func (e *Engine) GetSchedule(loanID uuid.UUID) ([]*models.ScheduleItem, error) {
	if _, err := e.storage.GetLoan(loanID); err != nil {
		return nil, err
	}
	return e.storage.GetScheduleItems(loanID)
}

// GetRepayments retrieves a loan's repayment history.
func (e *Engine) GetRepayments(loanID uuid.UUID) ([]*models.Repayment, error) {
	if _, err := e.storage.GetLoan(loanID); err != nil {
		return nil, err
	}
	return e.storage.GetRepaymentsForLoan(loanID)
}

// loanNumber generates a human-readable loan identifier.
func loanNumber() string {
	return "LN-" + shortID(8)
}

// receiptNumber generates a receipt identifier, unique per repayment.
func receiptNumber() string {
	return "RCPT-" + shortID(12)
}

func shortID(n int) string {
	s := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(s[:n])
}
