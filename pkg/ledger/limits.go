package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"banking-core/pkg/bank"
	"banking-core/pkg/store"
)

// DefaultDailyLimit is the maximum cumulative amount an account may send
// per calendar day.
var DefaultDailyLimit = decimal.NewFromInt(100000)

// LimitPolicy enforces the rolling calendar-day ceiling on outgoing
// transfers. The window is the calendar day of the engine clock, not a
// 24h sliding window: a transfer at 23:59 and one at 00:01 fall in
// different windows.
type LimitPolicy struct {
	dailyLimit decimal.Decimal
}

// NewLimitPolicy returns a policy with the given ceiling. A zero or
// negative limit falls back to DefaultDailyLimit.
func NewLimitPolicy(dailyLimit decimal.Decimal) *LimitPolicy {
	if dailyLimit.LessThanOrEqual(decimal.Zero) {
		dailyLimit = DefaultDailyLimit
	}
	return &LimitPolicy{dailyLimit: dailyLimit}
}

// DailyLimit returns the configured ceiling.
func (p *LimitPolicy) DailyLimit() decimal.Decimal {
	return p.dailyLimit
}

// Check fails with bank.ErrDailyLimitExceeded when the account's sent
// total for the calendar day of asOf, plus amount, would exceed the
// ceiling. It must run inside the same atomic scope as the transfer it
// guards; with the sender row locked, no two committed transfers can
// jointly exceed the limit.
func (p *LimitPolicy) Check(ctx context.Context, tx store.Tx, accountNumber string, amount decimal.Decimal, asOf time.Time) error {
	dayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	sent, err := tx.SumSentBetween(ctx, accountNumber, dayStart, dayEnd)
	if err != nil {
		return err
	}

	if sent.Add(amount).GreaterThan(p.dailyLimit) {
		return fmt.Errorf("sent %s today, %s more would exceed limit %s: %w",
			sent, amount, p.dailyLimit, bank.ErrDailyLimitExceeded)
	}
	return nil
}
