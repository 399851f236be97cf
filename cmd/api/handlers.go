package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/openmfi/loancore/pkg/models"
	"github.com/shopspring/decimal"
)

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidStateTransition),
		errors.Is(err, models.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrOverpayment),
		errors.Is(err, models.ErrUnsupportedFrequency),
		errors.Is(err, models.ErrUnsupportedInterestMethod):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func (s *Server) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name               string           `json:"name"`
		InterestMethod     string           `json:"interest_method"`
		AnnualInterestRate decimal.Decimal  `json:"annual_interest_rate"`
		PenaltyRate        *decimal.Decimal `json:"penalty_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Products created without an explicit penalty rate fall back to the
	// configured default.
	penaltyRate := s.defaultPenaltyRate
	if req.PenaltyRate != nil {
		penaltyRate = *req.PenaltyRate
	}

	product, err := s.engine.CreateProduct(req.Name, req.InterestMethod, req.AnnualInterestRate, penaltyRate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	product, err := s.engine.GetProduct(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID          uuid.UUID       `json:"product_id"`
		Principal          decimal.Decimal `json:"principal_amount"`
		AnnualInterestRate decimal.Decimal `json:"annual_interest_rate"`
		TermMonths         int             `json:"term_months"`
		Frequency          string          `json:"repayment_frequency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := s.engine.CreateLoan(req.ProductID, req.Principal, req.AnnualInterestRate, req.TermMonths, req.Frequency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := s.engine.GetLoan(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.engine.GetAllLoans()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := s.engine.Approve(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) disburseLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		DisbursementMethod   string `json:"disbursement_method"`
		TransactionReference string `json:"transaction_reference"`
		Notes                string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, items, err := s.engine.Disburse(id, time.Now(), req.DisbursementMethod, req.TransactionReference, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"loan_id":           loan.ID,
		"status":            loan.Status,
		"disbursement_date": loan.DisbursementDate,
		"expected_end_date": loan.ExpectedEndDate,
		"installment_count": len(items),
	})
}

func (s *Server) getScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	items, err := s.engine.GetSchedule(id)
	if err != nil {
		writeError(w, err)
		return
	}

	overdue := 0
	now := time.Now()
	for _, item := range items {
		if !item.Paid && item.DueDate.Before(now) {
			overdue++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loan_id":       id,
		"schedule":      items,
		"overdue_count": overdue,
	})
}

func (s *Server) createRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount               decimal.Decimal `json:"amount"`
		PaymentMethod        string          `json:"payment_method"`
		TransactionReference string          `json:"transaction_reference"`
		Notes                string          `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	repayment, loan, err := s.engine.CreateRepayment(id, req.Amount, time.Now(), req.PaymentMethod, req.TransactionReference, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"repayment_id":      repayment.ID,
		"receipt_number":    repayment.ReceiptNumber,
		"principal_paid":    repayment.PrincipalPaid,
		"interest_paid":     repayment.InterestPaid,
		"penalty_paid":      repayment.PenaltyPaid,
		"remaining_balance": loan.TotalOutstanding(),
	})
}

func (s *Server) listRepaymentsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	repayments, err := s.engine.GetRepayments(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repayments)
}
