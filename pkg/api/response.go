package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"banking-core/pkg/bank"
)

// errorBody is the JSON shape for every error response. Clients dispatch
// on the stable code, never on the message.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{
		Code:    bank.Code(err),
		Message: err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bank.ErrSameAccount),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrInvalidAction),
		errors.Is(err, bank.ErrInvalidAccountType),
		errors.Is(err, bank.ErrInvalidLoanType),
		errors.Is(err, bank.ErrInvalidLoanTerms),
		errors.Is(err, bank.ErrMinimumDeposit):
		return http.StatusBadRequest
	case bank.IsNotFound(err):
		return http.StatusNotFound
	case bank.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, bank.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, bank.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
