package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"banking-core/pkg/bank"
	"banking-core/pkg/logging"
	"banking-core/pkg/metrics"
)

// BreakerConfig configures the datastore circuit breaker.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears closed-state counts; 0 means never.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// ConsecutiveFailures opens the breaker once reached.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns conservative defaults: open after 5
// consecutive datastore failures, probe again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Resilient wraps a Store with a circuit breaker so a dead datastore
// fails fast with bank.ErrStoreUnavailable instead of piling up blocked
// requests. Only bank.ErrPersistence counts as a breaker failure; domain
// rejections (insufficient funds, not found, limits) pass through as
// successes.
type Resilient struct {
	inner   Store
	cb      *gobreaker.CircuitBreaker
	logger  *logging.Logger
	metrics metrics.Collector
}

// NewResilient wraps inner with breaker protection.
func NewResilient(inner Store, config BreakerConfig, logger *logging.Logger, collector metrics.Collector) *Resilient {
	if logger == nil {
		logger = logging.Nop()
	}
	if collector == nil {
		collector = metrics.Noop{}
	}

	r := &Resilient{inner: inner, logger: logger.Named("store"), metrics: collector}

	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "datastore",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, bank.ErrPersistence)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			r.metrics.RecordCircuitState(to.String())
		},
	})

	return r
}

func (r *Resilient) execute(operation string, fn func() error) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return bank.ErrStoreUnavailable
	}
	if errors.Is(err, bank.ErrPersistence) {
		r.metrics.RecordStoreFailure(operation)
	}
	return err
}

func (r *Resilient) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return r.execute("within_tx", func() error {
		return r.inner.WithinTx(ctx, fn)
	})
}

func (r *Resilient) FindAccount(ctx context.Context, number string) (*bank.Account, error) {
	var acct *bank.Account
	err := r.execute("find_account", func() error {
		var err error
		acct, err = r.inner.FindAccount(ctx, number)
		return err
	})
	return acct, err
}

func (r *Resilient) AccountExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.execute("account_exists", func() error {
		var err error
		exists, err = r.inner.AccountExists(ctx, number)
		return err
	})
	return exists, err
}

func (r *Resilient) CreateAccount(ctx context.Context, account *bank.Account) error {
	return r.execute("create_account", func() error {
		return r.inner.CreateAccount(ctx, account)
	})
}

func (r *Resilient) ListAccounts(ctx context.Context, customer string) ([]*bank.Account, error) {
	var accounts []*bank.Account
	err := r.execute("list_accounts", func() error {
		var err error
		accounts, err = r.inner.ListAccounts(ctx, customer)
		return err
	})
	return accounts, err
}

func (r *Resilient) ListTransactions(ctx context.Context, accountNumber string, limit int) ([]*bank.TransactionRecord, error) {
	var records []*bank.TransactionRecord
	err := r.execute("list_transactions", func() error {
		var err error
		records, err = r.inner.ListTransactions(ctx, accountNumber, limit)
		return err
	})
	return records, err
}

func (r *Resilient) CreateLoan(ctx context.Context, loan *bank.LoanApplication) error {
	return r.execute("create_loan", func() error {
		return r.inner.CreateLoan(ctx, loan)
	})
}

func (r *Resilient) GetLoan(ctx context.Context, id string) (*bank.LoanApplication, error) {
	var loan *bank.LoanApplication
	err := r.execute("get_loan", func() error {
		var err error
		loan, err = r.inner.GetLoan(ctx, id)
		return err
	})
	return loan, err
}

func (r *Resilient) ListLoans(ctx context.Context, customer string) ([]*bank.LoanApplication, error) {
	var loans []*bank.LoanApplication
	err := r.execute("list_loans", func() error {
		var err error
		loans, err = r.inner.ListLoans(ctx, customer)
		return err
	})
	return loans, err
}

func (r *Resilient) Close() error {
	return r.inner.Close()
}
