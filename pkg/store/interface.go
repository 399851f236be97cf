package store

import (
	"github.com/google/uuid"
	"github.com/openmfi/loancore/pkg/models"
)

// Storage defines the persistence operations the loan engine depends on.
// RecordDisbursement and RecordRepayment are units of work: each persists
// the loan together with its installments (and receipt) atomically, guarded
// by the loan's version.
type Storage interface {
	CreateProduct(product *models.LoanProduct) error
	GetProduct(id uuid.UUID) (*models.LoanProduct, error)

	CreateLoan(loan *models.LoanAccount) error
	GetLoan(id uuid.UUID) (*models.LoanAccount, error)
	UpdateLoan(loan *models.LoanAccount) error
	GetAllLoans() ([]*models.LoanAccount, error)

	GetScheduleItems(loanID uuid.UUID) ([]*models.ScheduleItem, error)
	GetUnpaidScheduleItems(loanID uuid.UUID) ([]*models.ScheduleItem, error)

	RecordDisbursement(loan *models.LoanAccount, items []*models.ScheduleItem) error
	RecordRepayment(loan *models.LoanAccount, items []*models.ScheduleItem, repayment *models.Repayment) error
	GetRepaymentsForLoan(loanID uuid.UUID) ([]*models.Repayment, error)

	Close() error
}
