package bank

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates the supported account categories.
type AccountType string

const (
	AccountSavings      AccountType = "SAVINGS"
	AccountCurrent      AccountType = "CURRENT"
	AccountFixedDeposit AccountType = "FIXED_DEPOSIT"
)

// Valid reports whether t is one of the recognized account categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountSavings, AccountCurrent, AccountFixedDeposit:
		return true
	}
	return false
}

// Account is a customer-owned balance holder. The account number is
// immutable once assigned; the balance must stay non-negative after every
// committed transfer and is mutated only inside a store transaction.
type Account struct {
	Number    string          `json:"account_number"`
	Customer  string          `json:"customer"`
	Type      AccountType     `json:"account_type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// TransactionType tags a transaction record from the perspective it was
// recorded in.
type TransactionType string

const (
	Debit  TransactionType = "DEBIT"
	Credit TransactionType = "CREDIT"
)

// TransactionRecord is the immutable audit entry for one funds movement.
// Exactly one record is written per successful transfer; records are never
// updated or deleted. Sender is empty for system-initiated credits.
type TransactionRecord struct {
	ID              string          `json:"id"`
	Sender          string          `json:"sender,omitempty"`
	Receiver        string          `json:"receiver"`
	SenderAccount   string          `json:"sender_account"`
	ReceiverAccount string          `json:"receiver_account"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"transaction_type"`
	Remark          string          `json:"remark,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LoanType enumerates the supported loan categories.
type LoanType string

const (
	LoanPersonal LoanType = "PERSONAL"
	LoanHome     LoanType = "HOME"
	LoanCar      LoanType = "CAR"
)

// Valid reports whether t is one of the recognized loan categories.
func (t LoanType) Valid() bool {
	switch t {
	case LoanPersonal, LoanHome, LoanCar:
		return true
	}
	return false
}

// LoanStatus is the loan application state. PENDING may move to APPROVED
// or REJECTED; both are terminal.
type LoanStatus string

const (
	LoanPending  LoanStatus = "PENDING"
	LoanApproved LoanStatus = "APPROVED"
	LoanRejected LoanStatus = "REJECTED"
)

// LoanApplication is a customer's request for an amortizing loan. EMI is
// computed once at creation and never recomputed; the stored value is
// authoritative.
type LoanApplication struct {
	ID           string          `json:"id"`
	Customer     string          `json:"customer"`
	Type         LoanType        `json:"loan_type"`
	Principal    decimal.Decimal `json:"amount"`
	TenureMonths int             `json:"tenure_months"`
	AnnualRate   decimal.Decimal `json:"interest_rate"`
	EMI          decimal.Decimal `json:"emi"`
	Status       LoanStatus      `json:"status"`
	AppliedAt    time.Time       `json:"applied_at"`
}

// Role is the authorization capability attached to a verified caller.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleReviewer Role = "reviewer"
)

// Identity is a verified caller, produced by the authentication layer
// upstream of this core. The core never trusts client-supplied identifiers
// directly.
type Identity struct {
	Email string
	Role  Role
}

// Clock abstracts the current time source so timestamping and the daily
// limit window are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
