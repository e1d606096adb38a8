package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"banking-core/pkg/bank"
)

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DefaultPostgresConfig returns default PostgreSQL configuration.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "banking",
		SSLMode:  "disable",
	}
}

// Postgres is the authoritative Store backed by PostgreSQL. Atomic scopes
// map to database transactions; exclusive account access uses row locks
// (SELECT ... FOR UPDATE) acquired by the caller in ascending
// account-number order.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool, verifies connectivity and creates
// the schema if missing.
func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.initTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init tables: %w", err)
	}

	return p, nil
}

func (p *Postgres) initTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_number TEXT PRIMARY KEY,
			customer TEXT NOT NULL,
			account_type TEXT NOT NULL,
			balance NUMERIC(15,2) NOT NULL CHECK (balance >= 0),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_customer ON accounts(customer)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL DEFAULT '',
			receiver TEXT NOT NULL,
			sender_account TEXT NOT NULL,
			receiver_account TEXT NOT NULL,
			amount NUMERIC(15,2) NOT NULL CHECK (amount > 0),
			transaction_type TEXT NOT NULL,
			remark TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_sender_day ON transactions(sender_account, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions(receiver_account, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS loans (
			id TEXT PRIMARY KEY,
			customer TEXT NOT NULL,
			loan_type TEXT NOT NULL,
			amount NUMERIC(15,2) NOT NULL,
			tenure_months INTEGER NOT NULL,
			interest_rate NUMERIC(5,2) NOT NULL,
			emi NUMERIC(15,2) NOT NULL,
			status TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_customer ON loans(customer, applied_at DESC)`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	return nil
}

// WithinTx runs fn inside one database transaction. Row locks taken via
// the Tx handle are held until commit or rollback.
func (p *Postgres) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return bank.WrapPersistence("begin transaction", err)
	}

	if err := fn(&postgresTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return bank.WrapPersistence("commit transaction", err)
	}
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) AccountForUpdate(ctx context.Context, number string) (*bank.Account, error) {
	query := `
		SELECT account_number, customer, account_type, balance, created_at
		FROM accounts WHERE account_number = $1
		FOR UPDATE
	`

	var a bank.Account
	err := t.tx.QueryRowContext(ctx, query, number).Scan(
		&a.Number, &a.Customer, &a.Type, &a.Balance, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", number, bank.ErrAccountNotFound)
	}
	if err != nil {
		return nil, bank.WrapPersistence("lock account", err)
	}
	return &a, nil
}

func (t *postgresTx) SaveAccount(ctx context.Context, account *bank.Account) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $2 WHERE account_number = $1`,
		account.Number, account.Balance,
	)
	if err != nil {
		return bank.WrapPersistence("save account", err)
	}
	return nil
}

func (t *postgresTx) SaveTransaction(ctx context.Context, record *bank.TransactionRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions
			(id, sender, receiver, sender_account, receiver_account, amount, transaction_type, remark, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.Sender, record.Receiver, record.SenderAccount,
		record.ReceiverAccount, record.Amount, record.Type, record.Remark, record.CreatedAt,
	)
	if err != nil {
		return bank.WrapPersistence("save transaction", err)
	}
	return nil
}

func (t *postgresTx) SumSentBetween(ctx context.Context, accountNumber string, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE sender_account = $1 AND created_at >= $2 AND created_at < $3`,
		accountNumber, from, to,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, bank.WrapPersistence("sum sent amounts", err)
	}
	return total, nil
}

func (t *postgresTx) LoanForUpdate(ctx context.Context, id string) (*bank.LoanApplication, error) {
	query := `
		SELECT id, customer, loan_type, amount, tenure_months, interest_rate, emi, status, applied_at
		FROM loans WHERE id = $1
		FOR UPDATE
	`

	var l bank.LoanApplication
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.Customer, &l.Type, &l.Principal, &l.TenureMonths,
		&l.AnnualRate, &l.EMI, &l.Status, &l.AppliedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %s: %w", id, bank.ErrLoanNotFound)
	}
	if err != nil {
		return nil, bank.WrapPersistence("lock loan", err)
	}
	return &l, nil
}

func (t *postgresTx) SaveLoan(ctx context.Context, loan *bank.LoanApplication) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE loans SET status = $2 WHERE id = $1`,
		loan.ID, loan.Status,
	)
	if err != nil {
		return bank.WrapPersistence("save loan", err)
	}
	return nil
}

func (p *Postgres) FindAccount(ctx context.Context, number string) (*bank.Account, error) {
	query := `
		SELECT account_number, customer, account_type, balance, created_at
		FROM accounts WHERE account_number = $1
	`

	var a bank.Account
	err := p.db.QueryRowContext(ctx, query, number).Scan(
		&a.Number, &a.Customer, &a.Type, &a.Balance, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", number, bank.ErrAccountNotFound)
	}
	if err != nil {
		return nil, bank.WrapPersistence("find account", err)
	}
	return &a, nil
}

func (p *Postgres) AccountExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`, number,
	).Scan(&exists)
	if err != nil {
		return false, bank.WrapPersistence("account exists", err)
	}
	return exists, nil
}

func (p *Postgres) CreateAccount(ctx context.Context, account *bank.Account) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO accounts (account_number, customer, account_type, balance, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		account.Number, account.Customer, account.Type, account.Balance, account.CreatedAt,
	)
	if err != nil {
		return bank.WrapPersistence("create account", err)
	}
	return nil
}

func (p *Postgres) ListAccounts(ctx context.Context, customer string) ([]*bank.Account, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT account_number, customer, account_type, balance, created_at
		FROM accounts
		WHERE customer = $1
		ORDER BY created_at DESC`,
		customer,
	)
	if err != nil {
		return nil, bank.WrapPersistence("list accounts", err)
	}
	defer rows.Close()

	var accounts []*bank.Account
	for rows.Next() {
		var a bank.Account
		if err := rows.Scan(&a.Number, &a.Customer, &a.Type, &a.Balance, &a.CreatedAt); err != nil {
			return nil, bank.WrapPersistence("scan account", err)
		}
		accounts = append(accounts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, bank.WrapPersistence("list accounts", err)
	}

	return accounts, nil
}

func (p *Postgres) ListTransactions(ctx context.Context, accountNumber string, limit int) ([]*bank.TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, sender, receiver, sender_account, receiver_account, amount, transaction_type, remark, created_at
		FROM transactions
		WHERE sender_account = $1 OR receiver_account = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		accountNumber, limit,
	)
	if err != nil {
		return nil, bank.WrapPersistence("list transactions", err)
	}
	defer rows.Close()

	var records []*bank.TransactionRecord
	for rows.Next() {
		var r bank.TransactionRecord
		if err := rows.Scan(
			&r.ID, &r.Sender, &r.Receiver, &r.SenderAccount, &r.ReceiverAccount,
			&r.Amount, &r.Type, &r.Remark, &r.CreatedAt,
		); err != nil {
			return nil, bank.WrapPersistence("scan transaction", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, bank.WrapPersistence("list transactions", err)
	}

	return records, nil
}

func (p *Postgres) CreateLoan(ctx context.Context, loan *bank.LoanApplication) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO loans (id, customer, loan_type, amount, tenure_months, interest_rate, emi, status, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		loan.ID, loan.Customer, loan.Type, loan.Principal, loan.TenureMonths,
		loan.AnnualRate, loan.EMI, loan.Status, loan.AppliedAt,
	)
	if err != nil {
		return bank.WrapPersistence("create loan", err)
	}
	return nil
}

func (p *Postgres) GetLoan(ctx context.Context, id string) (*bank.LoanApplication, error) {
	query := `
		SELECT id, customer, loan_type, amount, tenure_months, interest_rate, emi, status, applied_at
		FROM loans WHERE id = $1
	`

	var l bank.LoanApplication
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.Customer, &l.Type, &l.Principal, &l.TenureMonths,
		&l.AnnualRate, &l.EMI, &l.Status, &l.AppliedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %s: %w", id, bank.ErrLoanNotFound)
	}
	if err != nil {
		return nil, bank.WrapPersistence("get loan", err)
	}
	return &l, nil
}

func (p *Postgres) ListLoans(ctx context.Context, customer string) ([]*bank.LoanApplication, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, customer, loan_type, amount, tenure_months, interest_rate, emi, status, applied_at
		FROM loans
		WHERE customer = $1
		ORDER BY applied_at DESC`,
		customer,
	)
	if err != nil {
		return nil, bank.WrapPersistence("list loans", err)
	}
	defer rows.Close()

	var loans []*bank.LoanApplication
	for rows.Next() {
		var l bank.LoanApplication
		if err := rows.Scan(
			&l.ID, &l.Customer, &l.Type, &l.Principal, &l.TenureMonths,
			&l.AnnualRate, &l.EMI, &l.Status, &l.AppliedAt,
		); err != nil {
			return nil, bank.WrapPersistence("scan loan", err)
		}
		loans = append(loans, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, bank.WrapPersistence("list loans", err)
	}

	return loans, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
