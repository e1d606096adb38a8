// Package ledger implements the transfer engine: validation, per-account
// locking, balance mutation and the immutable audit record, all inside
// one atomic scope against the datastore.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking-core/pkg/bank"
	"banking-core/pkg/logging"
	"banking-core/pkg/metrics"
	"banking-core/pkg/store"
)

// Engine orchestrates transfers between two accounts.
type Engine struct {
	store   store.Store
	limits  *LimitPolicy
	clock   bank.Clock
	logger  *logging.Logger
	metrics metrics.Collector
}

// NewEngine creates a transfer engine. limits, clock, logger and
// collector may be nil; defaults are used.
func NewEngine(st store.Store, limits *LimitPolicy, clock bank.Clock, logger *logging.Logger, collector metrics.Collector) *Engine {
	if limits == nil {
		limits = NewLimitPolicy(DefaultDailyLimit)
	}
	if clock == nil {
		clock = bank.SystemClock()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Engine{
		store:   st,
		limits:  limits,
		clock:   clock,
		logger:  logger.Named("ledger"),
		metrics: collector,
	}
}

// Transfer moves amount from the sender account to the receiver account
// and writes exactly one DEBIT transaction record, all-or-nothing.
//
// Validation order, first failure wins: positive amount, distinct
// accounts, sender exists, receiver exists, sufficient funds, daily
// limit. Row locks are taken in ascending account-number order so two
// transfers exchanging the same pair of accounts cannot deadlock.
func (e *Engine) Transfer(ctx context.Context, senderNumber, receiverNumber string, amount decimal.Decimal, remark string) (*bank.TransactionRecord, error) {
	start := time.Now()
	record, err := e.transfer(ctx, senderNumber, receiverNumber, amount, remark)
	e.metrics.RecordTransfer(bank.Classify(err), amountForMetrics(err, amount), time.Since(start))
	return record, err
}

func (e *Engine) transfer(ctx context.Context, senderNumber, receiverNumber string, amount decimal.Decimal, remark string) (*bank.TransactionRecord, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("transfer amount %s: %w", amount, bank.ErrInvalidAmount)
	}
	if senderNumber == receiverNumber {
		return nil, bank.ErrSameAccount
	}

	var record *bank.TransactionRecord
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		sender, receiver, err := e.lockPair(ctx, tx, senderNumber, receiverNumber)
		if err != nil {
			return err
		}

		if sender.Balance.LessThan(amount) {
			return fmt.Errorf("balance %s, need %s: %w", sender.Balance, amount, bank.ErrInsufficientFunds)
		}

		now := e.clock.Now()
		if err := e.limits.Check(ctx, tx, senderNumber, amount, now); err != nil {
			return err
		}

		sender.Balance = sender.Balance.Sub(amount)
		receiver.Balance = receiver.Balance.Add(amount)

		if err := tx.SaveAccount(ctx, sender); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, receiver); err != nil {
			return err
		}

		record = &bank.TransactionRecord{
			ID:              uuid.NewString(),
			Sender:          sender.Customer,
			Receiver:        receiver.Customer,
			SenderAccount:   sender.Number,
			ReceiverAccount: receiver.Number,
			Amount:          amount,
			Type:            bank.Debit,
			Remark:          remark,
			CreatedAt:       now,
		}
		return tx.SaveTransaction(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("transfer committed",
		zap.String("transaction_id", record.ID),
		zap.String("sender_account", senderNumber),
		zap.String("receiver_account", receiverNumber),
		zap.String("amount", amount.String()),
	)
	return record, nil
}

// lockPair locks both accounts in ascending account-number order, then
// reports a missing sender before a missing receiver so the error the
// caller sees does not depend on lock order.
func (e *Engine) lockPair(ctx context.Context, tx store.Tx, senderNumber, receiverNumber string) (sender, receiver *bank.Account, err error) {
	first, second := senderNumber, receiverNumber
	if second < first {
		first, second = second, first
	}

	accounts := make(map[string]*bank.Account, 2)
	var senderErr, receiverErr error
	for _, number := range []string{first, second} {
		acct, lockErr := tx.AccountForUpdate(ctx, number)
		switch {
		case lockErr == nil:
			accounts[number] = acct
		case bank.IsNotFound(lockErr):
			if number == senderNumber {
				senderErr = fmt.Errorf("sender %w", lockErr)
			} else {
				receiverErr = fmt.Errorf("receiver %w", lockErr)
			}
		default:
			return nil, nil, lockErr
		}
	}

	if senderErr != nil {
		return nil, nil, senderErr
	}
	if receiverErr != nil {
		return nil, nil, receiverErr
	}
	return accounts[senderNumber], accounts[receiverNumber], nil
}

func amountForMetrics(err error, amount decimal.Decimal) float64 {
	if err != nil {
		return 0
	}
	f, _ := amount.Float64()
	return f
}
