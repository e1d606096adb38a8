package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking-core/pkg/bank"
)

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		AccountType    bank.AccountType `json:"account_type"`
		InitialDeposit decimal.Decimal  `json:"initial_deposit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	account, err := s.accounts.Open(r.Context(), caller, req.AccountType, req.InitialDeposit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	number := mux.Vars(r)["number"]
	account, err := s.ownedAccount(r, caller, number)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	accounts, err := s.accounts.List(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*bank.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	number := mux.Vars(r)["number"]
	ctx := r.Context()

	if _, err := s.ownedAccount(r, caller, number); err != nil {
		writeError(w, err)
		return
	}

	limit := s.config.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	// The cache holds one full-limit list per account. Narrowed reads skip
	// it entirely so a truncated list can never be served to a later full
	// read.
	cacheable := limit == s.config.HistoryLimit
	if cacheable {
		if records, hit := s.history.Get(ctx, number); hit {
			w.Header().Set("X-Cache-Hit", "true")
			writeJSON(w, http.StatusOK, records)
			return
		}
	}

	// Collapse concurrent identical reads so one datastore query serves
	// them all.
	key := number + ":" + strconv.Itoa(limit)
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		records, err := s.store.ListTransactions(ctx, number, limit)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.history.Set(ctx, number, records, s.config.HistoryTTL)
		}
		return records, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	records, _ := result.([]*bank.TransactionRecord)
	if records == nil {
		records = []*bank.TransactionRecord{}
	}
	w.Header().Set("X-Cache-Hit", "false")
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if _, ok := identityFrom(r); !ok {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		SenderAccountNumber   string          `json:"sender_account_number"`
		ReceiverAccountNumber string          `json:"receiver_account_number"`
		Amount                decimal.Decimal `json:"amount"`
		Remark                string          `json:"remark"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	record, err := s.engine.Transfer(r.Context(), req.SenderAccountNumber, req.ReceiverAccountNumber, req.Amount, req.Remark)
	if err != nil {
		writeError(w, err)
		return
	}

	s.history.Invalidate(r.Context(), record.SenderAccount)
	s.history.Invalidate(r.Context(), record.ReceiverAccount)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Transfer successful",
		"transaction": record,
	})
}

func (s *Server) handleApplyLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		LoanType     bank.LoanType    `json:"loan_type"`
		Amount       decimal.Decimal  `json:"amount"`
		TenureMonths int              `json:"tenure_months"`
		InterestRate *decimal.Decimal `json:"interest_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	app, err := s.loans.Apply(r.Context(), caller, req.LoanType, req.Amount, req.TenureMonths, req.InterestRate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	loans, err := s.loans.List(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if loans == nil {
		loans = []*bank.LoanApplication{}
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) handleReviewLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFrom(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	id := mux.Vars(r)["id"]
	app, err := s.loans.Review(r.Context(), id, req.Action, caller)
	if err != nil {
		s.logger.Debug("loan review rejected",
			zap.String("loan_id", id),
			zap.String("code", bank.Code(err)),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// ownedAccount loads the account and hides it from everyone but its
// owner: a non-owner gets the same not-found as an unknown number, so
// account numbers cannot be probed.
func (s *Server) ownedAccount(r *http.Request, caller bank.Identity, number string) (*bank.Account, error) {
	account, err := s.accounts.Get(r.Context(), number)
	if err != nil {
		return nil, err
	}
	if account.Customer != caller.Email {
		return nil, fmt.Errorf("account %s: %w", number, bank.ErrAccountNotFound)
	}
	return account, nil
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorBody{
		Code:    "UNAUTHENTICATED",
		Message: "missing verified caller identity",
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Code:    "BAD_REQUEST",
		Message: message,
	})
}
