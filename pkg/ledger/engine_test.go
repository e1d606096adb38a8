package ledger

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"banking-core/pkg/bank"
	"banking-core/pkg/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func seedAccount(t *testing.T, mem *store.Memory, number, customer, balance string) {
	t.Helper()
	err := mem.CreateAccount(context.Background(), &bank.Account{
		Number:    number,
		Customer:  customer,
		Type:      bank.AccountSavings,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", number, err)
	}
}

func balanceOf(t *testing.T, mem *store.Memory, number string) decimal.Decimal {
	t.Helper()
	acct, err := mem.FindAccount(context.Background(), number)
	if err != nil {
		t.Fatalf("find account %s: %v", number, err)
	}
	return acct.Balance
}

func newTestEngine(mem *store.Memory, limit string, clock bank.Clock) *Engine {
	var policy *LimitPolicy
	if limit != "" {
		policy = NewLimitPolicy(decimal.RequireFromString(limit))
	}
	return NewEngine(mem, policy, clock, nil, nil)
}

func TestTransferMovesFunds(t *testing.T) {
	mem := store.NewMemory()
	seedAccount(t, mem, "100000000001", "alice@example.com", "500")
	seedAccount(t, mem, "100000000002", "bob@example.com", "100")
	engine := newTestEngine(mem, "", nil)

	record, err := engine.Transfer(context.Background(), "100000000001", "100000000002",
		decimal.RequireFromString("150"), "rent")
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if record.Type != bank.Debit {
		t.Errorf("record type = %s, want DEBIT", record.Type)
	}
	if record.Sender != "alice@example.com" || record.Receiver != "bob@example.com" {
		t.Errorf("record parties = %s -> %s", record.Sender, record.Receiver)
	}
	if record.SenderAccount != "100000000001" || record.ReceiverAccount != "100000000002" {
		t.Errorf("record accounts = %s -> %s", record.SenderAccount, record.ReceiverAccount)
	}
	if !record.Amount.Equal(decimal.RequireFromString("150")) {
		t.Errorf("record amount = %s, want 150", record.Amount)
	}
	if record.Remark != "rent" {
		t.Errorf("record remark = %q, want %q", record.Remark, "rent")
	}

	if got := balanceOf(t, mem, "100000000001"); !got.Equal(decimal.RequireFromString("350")) {
		t.Errorf("sender balance = %s, want 350", got)
	}
	if got := balanceOf(t, mem, "100000000002"); !got.Equal(decimal.RequireFromString("250")) {
		t.Errorf("receiver balance = %s, want 250", got)
	}

	records, err := mem.ListTransactions(context.Background(), "100000000001", 0)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want exactly 1", len(records))
	}
}

func TestTransferValidation(t *testing.T) {
	tests := []struct {
		name     string
		sender   string
		receiver string
		amount   string
		wantErr  error
	}{
		{"zero amount", "100000000001", "100000000002", "0", bank.ErrInvalidAmount},
		{"negative amount", "100000000001", "100000000002", "-5", bank.ErrInvalidAmount},
		{"same account", "100000000001", "100000000001", "10", bank.ErrSameAccount},
		{"missing sender", "999999999999", "100000000002", "10", bank.ErrAccountNotFound},
		{"missing receiver", "100000000001", "999999999999", "10", bank.ErrAccountNotFound},
		{"insufficient funds", "100000000001", "100000000002", "500.01", bank.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			seedAccount(t, mem, "100000000001", "alice@example.com", "500")
			seedAccount(t, mem, "100000000002", "bob@example.com", "100")
			engine := newTestEngine(mem, "", nil)

			_, err := engine.Transfer(context.Background(), tt.sender, tt.receiver,
				decimal.RequireFromString(tt.amount), "")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			// Failed transfers must leave no trace.
			if got := balanceOf(t, mem, "100000000001"); !got.Equal(decimal.RequireFromString("500")) {
				t.Errorf("sender balance changed: %s", got)
			}
			if got := balanceOf(t, mem, "100000000002"); !got.Equal(decimal.RequireFromString("100")) {
				t.Errorf("receiver balance changed: %s", got)
			}
			records, _ := mem.ListTransactions(context.Background(), tt.sender, 0)
			if len(records) != 0 {
				t.Errorf("found %d records after failed transfer", len(records))
			}
		})
	}
}

func TestTransferReportsMissingSenderFirst(t *testing.T) {
	mem := store.NewMemory()
	engine := newTestEngine(mem, "", nil)

	_, err := engine.Transfer(context.Background(), "999999999998", "999999999999",
		decimal.RequireFromString("10"), "")
	if !errors.Is(err, bank.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "sender") {
		t.Errorf("error should name the sender, got %q", err)
	}
}

func TestTransferDailyLimit(t *testing.T) {
	mem := store.NewMemory()
	seedAccount(t, mem, "100000000001", "alice@example.com", "5000")
	seedAccount(t, mem, "100000000002", "bob@example.com", "0")
	clock := &fakeClock{now: time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)}
	engine := newTestEngine(mem, "1000", clock)
	ctx := context.Background()

	if _, err := engine.Transfer(ctx, "100000000001", "100000000002",
		decimal.RequireFromString("600"), ""); err != nil {
		t.Fatalf("first transfer failed: %v", err)
	}

	_, err := engine.Transfer(ctx, "100000000001", "100000000002",
		decimal.RequireFromString("500"), "")
	if !errors.Is(err, bank.ErrDailyLimitExceeded) {
		t.Fatalf("expected ErrDailyLimitExceeded, got %v", err)
	}

	// Filling the window exactly to the ceiling is still allowed.
	if _, err := engine.Transfer(ctx, "100000000001", "100000000002",
		decimal.RequireFromString("400"), ""); err != nil {
		t.Fatalf("transfer up to the limit failed: %v", err)
	}

	if got := balanceOf(t, mem, "100000000001"); !got.Equal(decimal.RequireFromString("4000")) {
		t.Errorf("sender balance = %s, want 4000", got)
	}
}

func TestDailyLimitUsesCalendarDays(t *testing.T) {
	mem := store.NewMemory()
	seedAccount(t, mem, "100000000001", "alice@example.com", "5000")
	seedAccount(t, mem, "100000000002", "bob@example.com", "0")
	clock := &fakeClock{now: time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC)}
	engine := newTestEngine(mem, "1000", clock)
	ctx := context.Background()

	if _, err := engine.Transfer(ctx, "100000000001", "100000000002",
		decimal.RequireFromString("900"), ""); err != nil {
		t.Fatalf("transfer at 23:59 failed: %v", err)
	}

	// Two minutes later it is a new calendar day with a fresh window.
	clock.Set(time.Date(2024, 5, 11, 0, 1, 0, 0, time.UTC))
	if _, err := engine.Transfer(ctx, "100000000001", "100000000002",
		decimal.RequireFromString("900"), ""); err != nil {
		t.Fatalf("transfer at 00:01 next day failed: %v", err)
	}
}

func TestConcurrentTransfersNoDoubleSpend(t *testing.T) {
	mem := store.NewMemory()
	seedAccount(t, mem, "100000000001", "alice@example.com", "100")
	seedAccount(t, mem, "100000000002", "bob@example.com", "0")
	seedAccount(t, mem, "100000000003", "carol@example.com", "0")
	engine := newTestEngine(mem, "", nil)

	errs := make([]error, 2)
	var g errgroup.Group
	for i, receiver := range []string{"100000000002", "100000000003"} {
		i, receiver := i, receiver
		g.Go(func() error {
			_, errs[i] = engine.Transfer(context.Background(), "100000000001", receiver,
				decimal.RequireFromString("60"), "")
			return nil
		})
	}
	_ = g.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, bank.ErrInsufficientFunds) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("failures = %d, want exactly 1 of 2 transfers rejected", failures)
	}
	if got := balanceOf(t, mem, "100000000001"); !got.Equal(decimal.RequireFromString("40")) {
		t.Errorf("sender balance = %s, want 40", got)
	}
}

func TestConcurrentTransfersJointDailyLimit(t *testing.T) {
	mem := store.NewMemory()
	seedAccount(t, mem, "100000000001", "alice@example.com", "1000")
	seedAccount(t, mem, "100000000002", "bob@example.com", "0")
	engine := newTestEngine(mem, "100", nil)

	errs := make([]error, 2)
	var g errgroup.Group
	for i := range errs {
		i := i
		g.Go(func() error {
			_, errs[i] = engine.Transfer(context.Background(), "100000000001", "100000000002",
				decimal.RequireFromString("60"), "")
			return nil
		})
	}
	_ = g.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, bank.ErrDailyLimitExceeded) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("failures = %d, want exactly 1 of 2 transfers rejected", failures)
	}
	if got := balanceOf(t, mem, "100000000001"); !got.Equal(decimal.RequireFromString("940")) {
		t.Errorf("sender balance = %s, want 940", got)
	}
}

type saveTransactionFailure struct {
	*store.Memory
}

func (s saveTransactionFailure) WithinTx(ctx context.Context, fn func(store.Tx) error) error {
	return s.Memory.WithinTx(ctx, func(tx store.Tx) error {
		return fn(failingTx{tx})
	})
}

type failingTx struct {
	store.Tx
}

func (failingTx) SaveTransaction(context.Context, *bank.TransactionRecord) error {
	return bank.WrapPersistence("save transaction", errors.New("disk full"))
}

func TestTransferRollsBackWhenRecordWriteFails(t *testing.T) {
	mem := store.NewMemory()
	seedAccount(t, mem, "100000000001", "alice@example.com", "500")
	seedAccount(t, mem, "100000000002", "bob@example.com", "100")
	engine := NewEngine(saveTransactionFailure{mem}, nil, nil, nil, nil)

	_, err := engine.Transfer(context.Background(), "100000000001", "100000000002",
		decimal.RequireFromString("150"), "")
	if !errors.Is(err, bank.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	// The balance writes that preceded the failed record write must be gone.
	if got := balanceOf(t, mem, "100000000001"); !got.Equal(decimal.RequireFromString("500")) {
		t.Errorf("sender balance = %s, want 500", got)
	}
	if got := balanceOf(t, mem, "100000000002"); !got.Equal(decimal.RequireFromString("100")) {
		t.Errorf("receiver balance = %s, want 100", got)
	}
}

func TestRandomTransfersConserveFundsAndStayNonNegative(t *testing.T) {
	mem := store.NewMemory()
	numbers := []string{"100000000001", "100000000002", "100000000003"}
	for _, n := range numbers {
		seedAccount(t, mem, n, n+"@example.com", "1000")
	}
	engine := newTestEngine(mem, "", nil)
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		seed := rng.Uint64()
		g.Go(func() error {
			local := rand.New(rand.NewSource(int64(seed)))
			for i := 0; i < 50; i++ {
				from := numbers[local.Intn(len(numbers))]
				to := numbers[local.Intn(len(numbers))]
				amount := decimal.NewFromInt(local.Int63n(400) + 1)
				_, err := engine.Transfer(ctx, from, to, amount, "")
				if err != nil && !errors.Is(err, bank.ErrSameAccount) && !errors.Is(err, bank.ErrInsufficientFunds) {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected transfer error: %v", err)
	}

	total := decimal.Zero
	for _, n := range numbers {
		balance := balanceOf(t, mem, n)
		if balance.IsNegative() {
			t.Errorf("account %s went negative: %s", n, balance)
		}
		total = total.Add(balance)
	}
	if !total.Equal(decimal.RequireFromString("3000")) {
		t.Errorf("total balance = %s, want 3000 (funds must be conserved)", total)
	}
}
