package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"banking-core/pkg/bank"
)

// Memory is an in-process Store used by tests and dev mode. A single
// mutex held for the whole atomic scope serializes every transaction, so
// per-account ordering holds trivially; writes are staged on copies and
// only merged back when the scope function succeeds, giving the same
// commit/rollback behavior as the PostgreSQL store.
type Memory struct {
	mu             sync.Mutex
	accounts       map[string]*bank.Account
	accountNumbers []string
	ledger         []*bank.TransactionRecord
	loans          map[string]*bank.LoanApplication
	loanIDs        []string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*bank.Account),
		loans:    make(map[string]*bank.LoanApplication),
	}
}

type memoryTx struct {
	m        *Memory
	accounts map[string]*bank.Account
	records  []*bank.TransactionRecord
	loans    map[string]*bank.LoanApplication
}

// WithinTx serializes the scope under the store mutex. The staged view is
// discarded when fn fails, so a failed transfer leaves no trace.
func (m *Memory) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		m:        m,
		accounts: make(map[string]*bank.Account),
		loans:    make(map[string]*bank.LoanApplication),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (tx *memoryTx) commit() {
	for number, acct := range tx.accounts {
		tx.m.accounts[number] = cloneAccount(acct)
	}
	for _, rec := range tx.records {
		cp := *rec
		tx.m.ledger = append(tx.m.ledger, &cp)
	}
	for id, loan := range tx.loans {
		tx.m.loans[id] = cloneLoan(loan)
	}
}

func (tx *memoryTx) AccountForUpdate(ctx context.Context, number string) (*bank.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if staged, ok := tx.accounts[number]; ok {
		return staged, nil
	}
	committed, ok := tx.m.accounts[number]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", number, bank.ErrAccountNotFound)
	}
	staged := cloneAccount(committed)
	tx.accounts[number] = staged
	return staged, nil
}

func (tx *memoryTx) SaveAccount(ctx context.Context, account *bank.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.accounts[account.Number] = cloneAccount(account)
	return nil
}

func (tx *memoryTx) SaveTransaction(ctx context.Context, record *bank.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *record
	tx.records = append(tx.records, &cp)
	return nil
}

func (tx *memoryTx) SumSentBetween(ctx context.Context, accountNumber string, from, to time.Time) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, rec := range tx.m.ledger {
		if rec.SenderAccount == accountNumber && inWindow(rec.CreatedAt, from, to) {
			total = total.Add(rec.Amount)
		}
	}
	for _, rec := range tx.records {
		if rec.SenderAccount == accountNumber && inWindow(rec.CreatedAt, from, to) {
			total = total.Add(rec.Amount)
		}
	}
	return total, nil
}

func (tx *memoryTx) LoanForUpdate(ctx context.Context, id string) (*bank.LoanApplication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if staged, ok := tx.loans[id]; ok {
		return staged, nil
	}
	committed, ok := tx.m.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, bank.ErrLoanNotFound)
	}
	staged := cloneLoan(committed)
	tx.loans[id] = staged
	return staged, nil
}

func (tx *memoryTx) SaveLoan(ctx context.Context, loan *bank.LoanApplication) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.loans[loan.ID] = cloneLoan(loan)
	return nil
}

func (m *Memory) FindAccount(ctx context.Context, number string) (*bank.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[number]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", number, bank.ErrAccountNotFound)
	}
	return cloneAccount(acct), nil
}

func (m *Memory) AccountExists(ctx context.Context, number string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[number]
	return ok, nil
}

func (m *Memory) CreateAccount(ctx context.Context, account *bank.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.Number]; ok {
		return bank.WrapPersistence("create account", fmt.Errorf("account %s already exists", account.Number))
	}
	m.accounts[account.Number] = cloneAccount(account)
	m.accountNumbers = append(m.accountNumbers, account.Number)
	return nil
}

func (m *Memory) ListAccounts(ctx context.Context, customer string) ([]*bank.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*bank.Account
	for i := len(m.accountNumbers) - 1; i >= 0; i-- {
		acct := m.accounts[m.accountNumbers[i]]
		if acct.Customer == customer {
			out = append(out, cloneAccount(acct))
		}
	}
	return out, nil
}

func (m *Memory) ListTransactions(ctx context.Context, accountNumber string, limit int) ([]*bank.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*bank.TransactionRecord
	for i := len(m.ledger) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rec := m.ledger[i]
		if rec.SenderAccount == accountNumber || rec.ReceiverAccount == accountNumber {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) CreateLoan(ctx context.Context, loan *bank.LoanApplication) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[loan.ID]; ok {
		return bank.WrapPersistence("create loan", fmt.Errorf("loan %s already exists", loan.ID))
	}
	m.loans[loan.ID] = cloneLoan(loan)
	m.loanIDs = append(m.loanIDs, loan.ID)
	return nil
}

func (m *Memory) GetLoan(ctx context.Context, id string) (*bank.LoanApplication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, bank.ErrLoanNotFound)
	}
	return cloneLoan(loan), nil
}

func (m *Memory) ListLoans(ctx context.Context, customer string) ([]*bank.LoanApplication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*bank.LoanApplication
	for i := len(m.loanIDs) - 1; i >= 0; i-- {
		loan := m.loans[m.loanIDs[i]]
		if loan.Customer == customer {
			out = append(out, cloneLoan(loan))
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func cloneAccount(a *bank.Account) *bank.Account {
	cp := *a
	return &cp
}

func cloneLoan(l *bank.LoanApplication) *bank.LoanApplication {
	cp := *l
	return &cp
}
