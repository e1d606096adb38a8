// Package cache provides an optional read cache for per-account
// transaction history. The datastore stays the source of truth; the
// cache only shortens the hot read path and is invalidated after every
// committed transfer that touches the account.
package cache

import (
	"context"
	"time"

	"banking-core/pkg/bank"
)

// HistoryCache caches transaction-history lists keyed by account number.
// Implementations must treat every operation as best-effort: a cache
// failure is never a request failure.
type HistoryCache interface {
	// Get returns the cached history and true on a hit.
	Get(ctx context.Context, accountNumber string) ([]*bank.TransactionRecord, bool)

	// Set stores the history with the given TTL.
	Set(ctx context.Context, accountNumber string, records []*bank.TransactionRecord, ttl time.Duration)

	// Invalidate drops the cached history for the account.
	Invalidate(ctx context.Context, accountNumber string)

	Close()
}

// Noop is the HistoryCache used when no Redis is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]*bank.TransactionRecord, bool) { return nil, false }
func (Noop) Set(context.Context, string, []*bank.TransactionRecord, time.Duration) {
}
func (Noop) Invalidate(context.Context, string) {}
func (Noop) Close()                             {}
