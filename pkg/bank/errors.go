package bank

import (
	"errors"
	"fmt"
)

// Domain errors surfaced by the transfer engine, the loan lifecycle and
// the supporting services. Callers match them with errors.Is; the HTTP
// layer maps them to responses via Code so nothing string-matches.
var (
	// ErrSameAccount is returned when sender and receiver are the same account.
	ErrSameAccount = errors.New("bank: sender and receiver accounts are the same")

	// ErrAccountNotFound is returned when an account number does not exist.
	ErrAccountNotFound = errors.New("bank: account not found")

	// ErrLoanNotFound is returned when a loan application id does not exist.
	ErrLoanNotFound = errors.New("bank: loan application not found")

	// ErrInvalidAmount is returned when an amount is zero or negative.
	ErrInvalidAmount = errors.New("bank: amount must be greater than zero")

	// ErrInsufficientFunds is returned when the sender balance cannot cover a transfer.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")

	// ErrDailyLimitExceeded is returned when a transfer would push the
	// sender's calendar-day total past the configured ceiling.
	ErrDailyLimitExceeded = errors.New("bank: daily transfer limit exceeded")

	// ErrInvalidAction is returned for a review action other than APPROVE or REJECT.
	ErrInvalidAction = errors.New("bank: invalid review action")

	// ErrInvalidStateTransition is returned when reviewing a loan that has
	// already left PENDING. APPROVED and REJECTED are terminal.
	ErrInvalidStateTransition = errors.New("bank: loan application already decided")

	// ErrUnauthorized is returned when the caller lacks the capability for
	// the requested operation.
	ErrUnauthorized = errors.New("bank: caller not authorized")

	// ErrInvalidAccountType is returned for an unrecognized account category.
	ErrInvalidAccountType = errors.New("bank: invalid account type")

	// ErrInvalidLoanType is returned for an unrecognized loan category.
	ErrInvalidLoanType = errors.New("bank: invalid loan type")

	// ErrInvalidLoanTerms is returned when tenure or interest rate is out of range.
	ErrInvalidLoanTerms = errors.New("bank: invalid loan terms")

	// ErrMinimumDeposit is returned when the opening deposit is below the
	// minimum for the account type.
	ErrMinimumDeposit = errors.New("bank: initial deposit below minimum")

	// ErrAccountNumberExhausted is returned when the generator could not
	// allocate a unique account number within its retry budget.
	ErrAccountNumberExhausted = errors.New("bank: account number space exhausted")

	// ErrPersistence wraps datastore failures inside an atomic scope. The
	// scope has been rolled back when this is returned.
	ErrPersistence = errors.New("bank: datastore failure")

	// ErrStoreUnavailable is returned when the datastore circuit breaker is
	// open and requests are being rejected without touching the store.
	ErrStoreUnavailable = errors.New("bank: datastore unavailable")
)

// IsNotFound reports whether err indicates a missing account or loan.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrLoanNotFound)
}

// IsConflict reports whether err is a business-rule rejection rather than
// a malformed request or an infrastructure failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDailyLimitExceeded) ||
		errors.Is(err, ErrInvalidStateTransition)
}

// Code returns a stable machine-readable code for err. The calling layer
// renders responses from these codes, never from error strings.
func Code(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrSameAccount):
		return "SAME_ACCOUNT"
	case errors.Is(err, ErrAccountNotFound):
		return "ACCOUNT_NOT_FOUND"
	case errors.Is(err, ErrLoanNotFound):
		return "LOAN_NOT_FOUND"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrDailyLimitExceeded):
		return "DAILY_LIMIT_EXCEEDED"
	case errors.Is(err, ErrInvalidAction):
		return "INVALID_ACTION"
	case errors.Is(err, ErrInvalidStateTransition):
		return "INVALID_STATE_TRANSITION"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrInvalidAccountType):
		return "INVALID_ACCOUNT_TYPE"
	case errors.Is(err, ErrInvalidLoanType):
		return "INVALID_LOAN_TYPE"
	case errors.Is(err, ErrInvalidLoanTerms):
		return "INVALID_LOAN_TERMS"
	case errors.Is(err, ErrMinimumDeposit):
		return "MINIMUM_DEPOSIT"
	case errors.Is(err, ErrAccountNumberExhausted):
		return "ACCOUNT_NUMBER_EXHAUSTED"
	case errors.Is(err, ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE"
	default:
		return "INTERNAL"
	}
}

// Classify returns a low-cardinality label for err, suitable for metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSameAccount), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidAction), errors.Is(err, ErrInvalidAccountType),
		errors.Is(err, ErrInvalidLoanType), errors.Is(err, ErrInvalidLoanTerms):
		return "validation"
	case IsNotFound(err):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrDailyLimitExceeded):
		return "daily_limit"
	case errors.Is(err, ErrInvalidStateTransition):
		return "state_transition"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrMinimumDeposit):
		return "minimum_deposit"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}

// WrapPersistence marks a datastore failure so callers can distinguish it
// from domain rejections. Returns nil for a nil err.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
