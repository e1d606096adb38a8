package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"banking-core/pkg/bank"
)

func testAccount(number, balance string) *bank.Account {
	return &bank.Account{
		Number:    number,
		Customer:  number + "@example.com",
		Type:      bank.AccountSavings,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testRecord(id, senderAccount, receiverAccount, amount string, at time.Time) *bank.TransactionRecord {
	return &bank.TransactionRecord{
		ID:              id,
		Sender:          senderAccount + "@example.com",
		Receiver:        receiverAccount + "@example.com",
		SenderAccount:   senderAccount,
		ReceiverAccount: receiverAccount,
		Amount:          decimal.RequireFromString(amount),
		Type:            bank.Debit,
		CreatedAt:       at,
	}
}

func TestAccountLifecycle(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	exists, err := mem.AccountExists(ctx, "100000000001")
	if err != nil || exists {
		t.Fatalf("AccountExists = %v, %v; want false, nil", exists, err)
	}

	if err := mem.CreateAccount(ctx, testAccount("100000000001", "500")); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	exists, err = mem.AccountExists(ctx, "100000000001")
	if err != nil || !exists {
		t.Fatalf("AccountExists = %v, %v; want true, nil", exists, err)
	}

	acct, err := mem.FindAccount(ctx, "100000000001")
	if err != nil {
		t.Fatalf("FindAccount failed: %v", err)
	}
	if !acct.Balance.Equal(decimal.RequireFromString("500")) {
		t.Errorf("balance = %s, want 500", acct.Balance)
	}

	// Duplicate numbers are a datastore-level failure, not a domain error.
	if err := mem.CreateAccount(ctx, testAccount("100000000001", "0")); !errors.Is(err, bank.ErrPersistence) {
		t.Errorf("duplicate create: expected ErrPersistence, got %v", err)
	}

	if _, err := mem.FindAccount(ctx, "999999999999"); !errors.Is(err, bank.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestListAccountsByCustomer(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	first := testAccount("100000000001", "500")
	second := testAccount("100000000002", "1000")
	second.Customer = first.Customer
	other := testAccount("100000000003", "500")

	for _, acct := range []*bank.Account{first, second, other} {
		if err := mem.CreateAccount(ctx, acct); err != nil {
			t.Fatalf("CreateAccount %s failed: %v", acct.Number, err)
		}
	}

	accounts, err := mem.ListAccounts(ctx, first.Customer)
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len(accounts) = %d, want 2", len(accounts))
	}
	if accounts[0].Number != "100000000002" || accounts[1].Number != "100000000001" {
		t.Errorf("order = [%s, %s], want newest first", accounts[0].Number, accounts[1].Number)
	}

	if accounts, _ := mem.ListAccounts(ctx, "nobody@example.com"); len(accounts) != 0 {
		t.Errorf("ListAccounts for unknown customer = %d, want 0", len(accounts))
	}
}

func TestFindAccountReturnsCopy(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	if err := mem.CreateAccount(ctx, testAccount("100000000001", "500")); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	acct, _ := mem.FindAccount(ctx, "100000000001")
	acct.Balance = decimal.Zero

	again, _ := mem.FindAccount(ctx, "100000000001")
	if !again.Balance.Equal(decimal.RequireFromString("500")) {
		t.Errorf("mutating a returned account leaked into the store: balance = %s", again.Balance)
	}
}

func TestWithinTxCommit(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	if err := mem.CreateAccount(ctx, testAccount("100000000001", "500")); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	err := mem.WithinTx(ctx, func(tx Tx) error {
		acct, err := tx.AccountForUpdate(ctx, "100000000001")
		if err != nil {
			return err
		}
		acct.Balance = acct.Balance.Sub(decimal.RequireFromString("100"))
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return err
		}
		return tx.SaveTransaction(ctx, testRecord("txn-1", "100000000001", "100000000002", "100", time.Now()))
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	acct, _ := mem.FindAccount(ctx, "100000000001")
	if !acct.Balance.Equal(decimal.RequireFromString("400")) {
		t.Errorf("balance = %s, want 400", acct.Balance)
	}
	records, _ := mem.ListTransactions(ctx, "100000000001", 0)
	if len(records) != 1 {
		t.Errorf("len(records) = %d, want 1", len(records))
	}
}

func TestWithinTxRollback(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	if err := mem.CreateAccount(ctx, testAccount("100000000001", "500")); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	boom := errors.New("boom")
	err := mem.WithinTx(ctx, func(tx Tx) error {
		acct, err := tx.AccountForUpdate(ctx, "100000000001")
		if err != nil {
			return err
		}
		acct.Balance = decimal.Zero
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, testRecord("txn-1", "100000000001", "100000000002", "500", time.Now())); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected scope error to surface, got %v", err)
	}

	acct, _ := mem.FindAccount(ctx, "100000000001")
	if !acct.Balance.Equal(decimal.RequireFromString("500")) {
		t.Errorf("balance = %s after rollback, want 500", acct.Balance)
	}
	records, _ := mem.ListTransactions(ctx, "100000000001", 0)
	if len(records) != 0 {
		t.Errorf("len(records) = %d after rollback, want 0", len(records))
	}
}

func TestSumSentBetween(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	seed := func(id, amount string, at time.Time) {
		err := mem.WithinTx(ctx, func(tx Tx) error {
			return tx.SaveTransaction(ctx, testRecord(id, "100000000001", "100000000002", amount, at))
		})
		if err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}
	seed("before", "100", day.Add(-time.Second))
	seed("start", "200", day)
	seed("middle", "300", day.Add(12*time.Hour))
	seed("end", "400", day.Add(24*time.Hour))

	err := mem.WithinTx(ctx, func(tx Tx) error {
		sum, err := tx.SumSentBetween(ctx, "100000000001", day, day.Add(24*time.Hour))
		if err != nil {
			return err
		}
		if !sum.Equal(decimal.RequireFromString("500")) {
			t.Errorf("sum = %s, want 500 (half-open window)", sum)
		}

		// Writes staged in this same scope count too.
		if err := tx.SaveTransaction(ctx, testRecord("staged", "100000000001", "100000000002", "50", day.Add(time.Hour))); err != nil {
			return err
		}
		sum, err = tx.SumSentBetween(ctx, "100000000001", day, day.Add(24*time.Hour))
		if err != nil {
			return err
		}
		if !sum.Equal(decimal.RequireFromString("550")) {
			t.Errorf("sum with staged write = %s, want 550", sum)
		}
		return errors.New("discard")
	})
	if err == nil {
		t.Fatal("expected sentinel error to discard the scope")
	}
}

func TestListTransactionsOrderAndFilter(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	err := mem.WithinTx(ctx, func(tx Tx) error {
		if err := tx.SaveTransaction(ctx, testRecord("t1", "100000000001", "100000000002", "10", base)); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, testRecord("t2", "100000000002", "100000000001", "20", base.Add(time.Minute))); err != nil {
			return err
		}
		return tx.SaveTransaction(ctx, testRecord("t3", "100000000002", "100000000003", "30", base.Add(2*time.Minute)))
	})
	if err != nil {
		t.Fatalf("seed records: %v", err)
	}

	records, err := mem.ListTransactions(ctx, "100000000001", 0)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2 (sent and received)", len(records))
	}
	if records[0].ID != "t2" || records[1].ID != "t1" {
		t.Errorf("order = [%s, %s], want newest first [t2, t1]", records[0].ID, records[1].ID)
	}

	limited, _ := mem.ListTransactions(ctx, "100000000001", 1)
	if len(limited) != 1 || limited[0].ID != "t2" {
		t.Errorf("limit 1 returned %d records", len(limited))
	}
}

func TestLoanStore(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	loan := &bank.LoanApplication{
		ID:           "loan-1",
		Customer:     "alice@example.com",
		Type:         bank.LoanPersonal,
		Principal:    decimal.RequireFromString("50000"),
		TenureMonths: 24,
		AnnualRate:   decimal.RequireFromString("12"),
		EMI:          decimal.RequireFromString("2353.67"),
		Status:       bank.LoanPending,
		AppliedAt:    time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	if err := mem.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("CreateLoan failed: %v", err)
	}

	if _, err := mem.GetLoan(ctx, "missing"); !errors.Is(err, bank.ErrLoanNotFound) {
		t.Errorf("expected ErrLoanNotFound, got %v", err)
	}

	err := mem.WithinTx(ctx, func(tx Tx) error {
		locked, err := tx.LoanForUpdate(ctx, "loan-1")
		if err != nil {
			return err
		}
		locked.Status = bank.LoanApproved
		return tx.SaveLoan(ctx, locked)
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	stored, err := mem.GetLoan(ctx, "loan-1")
	if err != nil {
		t.Fatalf("GetLoan failed: %v", err)
	}
	if stored.Status != bank.LoanApproved {
		t.Errorf("status = %s, want APPROVED", stored.Status)
	}

	loans, err := mem.ListLoans(ctx, "alice@example.com")
	if err != nil || len(loans) != 1 {
		t.Fatalf("ListLoans = %d, %v; want 1, nil", len(loans), err)
	}
	if loans, _ := mem.ListLoans(ctx, "bob@example.com"); len(loans) != 0 {
		t.Errorf("ListLoans for other customer = %d, want 0", len(loans))
	}
}
