package store

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/openmfi/loancore/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Println("Database connection established and schema initialized.")
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loan_products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		interest_method TEXT NOT NULL,
		annual_interest_rate TEXT NOT NULL,
		penalty_rate TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		loan_number TEXT NOT NULL UNIQUE,
		product_id TEXT NOT NULL,
		principal TEXT NOT NULL,
		annual_interest_rate TEXT NOT NULL,
		term_months INTEGER NOT NULL,
		repayment_frequency TEXT NOT NULL,
		interest_method TEXT NOT NULL,
		status TEXT NOT NULL,
		outstanding_principal TEXT NOT NULL,
		outstanding_interest TEXT NOT NULL,
		disbursement_date DATETIME,
		expected_end_date DATETIME,
		disbursement_method TEXT NOT NULL DEFAULT '',
		disbursement_reference TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(product_id) REFERENCES loan_products(id)
	);
	CREATE TABLE IF NOT EXISTS schedule_items (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		due_date DATETIME NOT NULL,
		principal_due TEXT NOT NULL,
		interest_due TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		is_paid INTEGER NOT NULL DEFAULT 0,
		paid_date DATETIME,
		FOREIGN KEY(loan_id) REFERENCES loans(id),
		UNIQUE(loan_id, seq)
	);
	CREATE TABLE IF NOT EXISTS repayments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		receipt_number TEXT NOT NULL UNIQUE,
		amount TEXT NOT NULL,
		principal_paid TEXT NOT NULL,
		interest_paid TEXT NOT NULL,
		penalty_paid TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		transaction_reference TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		repayment_date DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateProduct inserts a new loan product.
func (s *SQLiteStore) CreateProduct(p *models.LoanProduct) error {
	_, err := s.db.Exec(
		`INSERT INTO loan_products (id, name, interest_method, annual_interest_rate, penalty_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, p.InterestMethod, p.AnnualInterestRate, p.PenaltyRate, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetProduct retrieves a loan product by its ID.
func (s *SQLiteStore) GetProduct(id uuid.UUID) (*models.LoanProduct, error) {
	var p models.LoanProduct
	var idStr, method string

	row := s.db.QueryRow(`SELECT id, name, interest_method, annual_interest_rate, penalty_rate, created_at FROM loan_products WHERE id = ?`, id.String())
	err := row.Scan(&idStr, &p.Name, &method, &p.AnnualInterestRate, &p.PenaltyRate, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("loan product %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	p.ID = uuid.MustParse(idStr)
	p.InterestMethod = models.InterestMethod(method)
	return &p, nil
}

const loanColumns = `id, loan_number, product_id, principal, annual_interest_rate, term_months, repayment_frequency, interest_method, status, outstanding_principal, outstanding_interest, disbursement_date, expected_end_date, disbursement_method, disbursement_reference, version, created_at, updated_at`

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(loan *models.LoanAccount) error {
	_, err := s.db.Exec(
		`INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.LoanNumber, loan.ProductID.String(), loan.Principal, loan.AnnualInterestRate,
		loan.TermMonths, loan.Frequency, loan.InterestMethod, loan.Status,
		loan.OutstandingPrincipal, loan.OutstandingInterest,
		loan.DisbursementDate, loan.ExpectedEndDate, loan.DisbursementMethod, loan.DisbursementReference,
		loan.Version, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.LoanAccount, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("loan %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan updates a loan guarded by its version. A stale version means a
// concurrent writer committed first; the caller must reload and retry.
// On success the in-memory version is advanced to match the row.
func (s *SQLiteStore) UpdateLoan(loan *models.LoanAccount) error {
	result, err := s.db.Exec(
		`UPDATE loans SET status = ?, outstanding_principal = ?, outstanding_interest = ?, disbursement_date = ?, expected_end_date = ?, disbursement_method = ?, disbursement_reference = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		loan.Status, loan.OutstandingPrincipal, loan.OutstandingInterest,
		loan.DisbursementDate, loan.ExpectedEndDate, loan.DisbursementMethod, loan.DisbursementReference,
		loan.UpdatedAt, loan.ID.String(), loan.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("loan %s at version %d: %w", loan.ID, loan.Version, models.ErrVersionConflict)
	}
	loan.Version++
	return nil
}

// GetAllLoans retrieves all loans.
func (s *SQLiteStore) GetAllLoans() ([]*models.LoanAccount, error) {
	rows, err := s.db.Query(`SELECT ` + loanColumns + ` FROM loans`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.LoanAccount
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(row scanner) (*models.LoanAccount, error) {
	var loan models.LoanAccount
	var idStr, productIDStr, frequency, method, status string
	var disbursed, endDate sql.NullTime

	err := row.Scan(&idStr, &loan.LoanNumber, &productIDStr, &loan.Principal, &loan.AnnualInterestRate,
		&loan.TermMonths, &frequency, &method, &status,
		&loan.OutstandingPrincipal, &loan.OutstandingInterest,
		&disbursed, &endDate, &loan.DisbursementMethod, &loan.DisbursementReference,
		&loan.Version, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	loan.ID = uuid.MustParse(idStr)
	loan.ProductID = uuid.MustParse(productIDStr)
	loan.Frequency = models.RepaymentFrequency(frequency)
	loan.InterestMethod = models.InterestMethod(method)
	loan.Status = models.LoanStatus(status)
	if disbursed.Valid {
		loan.DisbursementDate = &disbursed.Time
	}
	if endDate.Valid {
		loan.ExpectedEndDate = &endDate.Time
	}
	return &loan, nil
}

const itemColumns = `id, loan_id, seq, due_date, principal_due, interest_due, paid_amount, is_paid, paid_date`

// GetScheduleItems retrieves a loan's full schedule ordered by sequence.
func (s *SQLiteStore) GetScheduleItems(loanID uuid.UUID) ([]*models.ScheduleItem, error) {
	rows, err := s.db.Query(`SELECT `+itemColumns+` FROM schedule_items WHERE loan_id = ? ORDER BY seq ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule for loan %s: %w", loanID, err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// GetUnpaidScheduleItems retrieves the loan's open installments ordered by
// due date ascending, the order the allocator walks them in.
func (s *SQLiteStore) GetUnpaidScheduleItems(loanID uuid.UUID) ([]*models.ScheduleItem, error) {
	rows, err := s.db.Query(`SELECT `+itemColumns+` FROM schedule_items WHERE loan_id = ? AND is_paid = 0 ORDER BY due_date ASC, seq ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get unpaid schedule for loan %s: %w", loanID, err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]*models.ScheduleItem, error) {
	var items []*models.ScheduleItem
	for rows.Next() {
		var item models.ScheduleItem
		var idStr, loanIDStr string
		var paidDate sql.NullTime
		if err := rows.Scan(&idStr, &loanIDStr, &item.Sequence, &item.DueDate, &item.PrincipalDue, &item.InterestDue, &item.PaidAmount, &item.Paid, &paidDate); err != nil {
			return nil, fmt.Errorf("failed to scan schedule item row: %w", err)
		}
		item.ID = uuid.MustParse(idStr)
		item.LoanID = uuid.MustParse(loanIDStr)
		if paidDate.Valid {
			item.PaidDate = &paidDate.Time
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return items, nil
}

// RecordDisbursement persists the disbursed loan and its freshly generated
// schedule in a single transaction, guarded by the loan's version.
func (s *SQLiteStore) RecordDisbursement(loan *models.LoanAccount, items []*models.ScheduleItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateLoanTx(tx, loan); err != nil {
		return err
	}
	for _, item := range items {
		_, err := tx.Exec(
			`INSERT INTO schedule_items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID.String(), item.LoanID.String(), item.Sequence, item.DueDate,
			item.PrincipalDue, item.InterestDue, item.PaidAmount, item.Paid, item.PaidDate,
		)
		if err != nil {
			return fmt.Errorf("failed to insert schedule item %d: %w", item.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit disbursement: %w", err)
	}
	loan.Version++
	return nil
}

// RecordRepayment persists the updated loan, the touched installments and
// the repayment receipt in a single transaction, guarded by the loan's
// version. Nothing is written if the version is stale.
func (s *SQLiteStore) RecordRepayment(loan *models.LoanAccount, items []*models.ScheduleItem, rp *models.Repayment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateLoanTx(tx, loan); err != nil {
		return err
	}
	for _, item := range items {
		_, err := tx.Exec(
			`UPDATE schedule_items SET paid_amount = ?, is_paid = ?, paid_date = ? WHERE id = ?`,
			item.PaidAmount, item.Paid, item.PaidDate, item.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update schedule item %d: %w", item.Sequence, err)
		}
	}
	_, err = tx.Exec(
		`INSERT INTO repayments (id, loan_id, receipt_number, amount, principal_paid, interest_paid, penalty_paid, payment_method, transaction_reference, notes, repayment_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rp.ID.String(), rp.LoanID.String(), rp.ReceiptNumber, rp.Amount,
		rp.PrincipalPaid, rp.InterestPaid, rp.PenaltyPaid,
		rp.PaymentMethod, rp.TransactionReference, rp.Notes, rp.RepaymentDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert repayment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit repayment: %w", err)
	}
	loan.Version++
	return nil
}

func updateLoanTx(tx *sql.Tx, loan *models.LoanAccount) error {
	result, err := tx.Exec(
		`UPDATE loans SET status = ?, outstanding_principal = ?, outstanding_interest = ?, disbursement_date = ?, expected_end_date = ?, disbursement_method = ?, disbursement_reference = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		loan.Status, loan.OutstandingPrincipal, loan.OutstandingInterest,
		loan.DisbursementDate, loan.ExpectedEndDate, loan.DisbursementMethod, loan.DisbursementReference,
		loan.UpdatedAt, loan.ID.String(), loan.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("loan %s at version %d: %w", loan.ID, loan.Version, models.ErrVersionConflict)
	}
	return nil
}

// GetRepaymentsForLoan retrieves all repayments for a given loan ID.
func (s *SQLiteStore) GetRepaymentsForLoan(loanID uuid.UUID) ([]*models.Repayment, error) {
	rows, err := s.db.Query(`SELECT id, loan_id, receipt_number, amount, principal_paid, interest_paid, penalty_paid, payment_method, transaction_reference, notes, repayment_date FROM repayments WHERE loan_id = ? ORDER BY repayment_date ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get repayments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var repayments []*models.Repayment
	for rows.Next() {
		var rp models.Repayment
		var idStr, loanIDStr string
		if err := rows.Scan(&idStr, &loanIDStr, &rp.ReceiptNumber, &rp.Amount, &rp.PrincipalPaid, &rp.InterestPaid, &rp.PenaltyPaid, &rp.PaymentMethod, &rp.TransactionReference, &rp.Notes, &rp.RepaymentDate); err != nil {
			return nil, fmt.Errorf("failed to scan repayment row: %w", err)
		}
		rp.ID = uuid.MustParse(idStr)
		rp.LoanID = uuid.MustParse(loanIDStr)
		repayments = append(repayments, &rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return repayments, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
