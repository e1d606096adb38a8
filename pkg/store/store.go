// Package store defines the datastore contract consumed by the transfer
// engine and the loan lifecycle, plus its PostgreSQL and in-memory
// implementations. Both implementations provide the same atomic-scope
// semantics: everything written inside WithinTx commits or rolls back as
// a unit, and no partial state is visible to other readers.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"banking-core/pkg/bank"
)

// Store is the authoritative datastore for accounts, the transaction
// ledger and loan applications.
type Store interface {
	// WithinTx runs fn inside one atomic scope. If fn returns an error the
	// scope is rolled back and the error is returned unchanged; commit
	// failures surface as bank.ErrPersistence.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	FindAccount(ctx context.Context, number string) (*bank.Account, error)
	AccountExists(ctx context.Context, number string) (bool, error)
	CreateAccount(ctx context.Context, account *bank.Account) error

	// ListAccounts returns the customer's accounts, newest first.
	ListAccounts(ctx context.Context, customer string) ([]*bank.Account, error)

	// ListTransactions returns the most recent ledger entries that touch
	// the account, newest first.
	ListTransactions(ctx context.Context, accountNumber string, limit int) ([]*bank.TransactionRecord, error)

	CreateLoan(ctx context.Context, loan *bank.LoanApplication) error
	GetLoan(ctx context.Context, id string) (*bank.LoanApplication, error)
	ListLoans(ctx context.Context, customer string) ([]*bank.LoanApplication, error)

	Close() error
}

// Tx is the handle available inside an atomic scope. Row locks taken by
// AccountForUpdate and LoanForUpdate are held until the scope ends;
// callers lock accounts in ascending account-number order to stay
// deadlock-free.
type Tx interface {
	// AccountForUpdate loads the account and takes an exclusive lock on it
	// for the remainder of the scope. Returns bank.ErrAccountNotFound when
	// the number is unknown.
	AccountForUpdate(ctx context.Context, number string) (*bank.Account, error)

	SaveAccount(ctx context.Context, account *bank.Account) error
	SaveTransaction(ctx context.Context, record *bank.TransactionRecord) error

	// SumSentBetween totals the amounts the account sent in [from, to),
	// including writes staged earlier in this same scope.
	SumSentBetween(ctx context.Context, accountNumber string, from, to time.Time) (decimal.Decimal, error)

	// LoanForUpdate loads the loan application and takes an exclusive lock
	// on it for the remainder of the scope. Returns bank.ErrLoanNotFound
	// when the id is unknown.
	LoanForUpdate(ctx context.Context, id string) (*bank.LoanApplication, error)

	SaveLoan(ctx context.Context, loan *bank.LoanApplication) error
}
