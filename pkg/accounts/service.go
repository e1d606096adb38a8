package accounts

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking-core/pkg/bank"
	"banking-core/pkg/logging"
	"banking-core/pkg/store"
)

// Minimum opening deposits per account type. Fixed-deposit accounts have
// no floor beyond non-negativity.
var (
	MinDepositSavings = decimal.NewFromInt(500)
	MinDepositCurrent = decimal.NewFromInt(1000)
)

// Service opens and reads accounts.
type Service struct {
	store   store.Store
	numbers *NumberGenerator
	clock   bank.Clock
	logger  *logging.Logger
}

// NewService creates an account service. clock and logger may be nil;
// defaults are used.
func NewService(st store.Store, clock bank.Clock, logger *logging.Logger) *Service {
	if clock == nil {
		clock = bank.SystemClock()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		store:   st,
		numbers: NewNumberGenerator(st),
		clock:   clock,
		logger:  logger.Named("accounts"),
	}
}

// Open creates an account for the caller with a freshly allocated number.
func (s *Service) Open(ctx context.Context, owner bank.Identity, accountType bank.AccountType, initialDeposit decimal.Decimal) (*bank.Account, error) {
	if !accountType.Valid() {
		return nil, fmt.Errorf("account type %q: %w", accountType, bank.ErrInvalidAccountType)
	}
	if initialDeposit.IsNegative() {
		return nil, fmt.Errorf("initial deposit %s: %w", initialDeposit, bank.ErrInvalidAmount)
	}
	if err := checkMinimumDeposit(accountType, initialDeposit); err != nil {
		return nil, err
	}

	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, err
	}

	account := &bank.Account{
		Number:    number,
		Customer:  owner.Email,
		Type:      accountType,
		Balance:   initialDeposit,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account opened",
		zap.String("account_number", account.Number),
		zap.String("customer", account.Customer),
		zap.String("account_type", string(account.Type)),
	)
	return account, nil
}

// Get returns the account with the given number.
func (s *Service) Get(ctx context.Context, number string) (*bank.Account, error) {
	return s.store.FindAccount(ctx, number)
}

// List returns the owner's accounts, newest first.
func (s *Service) List(ctx context.Context, owner bank.Identity) ([]*bank.Account, error) {
	return s.store.ListAccounts(ctx, owner.Email)
}

func checkMinimumDeposit(accountType bank.AccountType, deposit decimal.Decimal) error {
	var min decimal.Decimal
	switch accountType {
	case bank.AccountSavings:
		min = MinDepositSavings
	case bank.AccountCurrent:
		min = MinDepositCurrent
	default:
		return nil
	}
	if deposit.LessThan(min) {
		return fmt.Errorf("%s requires at least %s: %w", accountType, min, bank.ErrMinimumDeposit)
	}
	return nil
}
