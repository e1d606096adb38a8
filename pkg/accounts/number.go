// Package accounts covers account opening: number allocation and the
// minimum-deposit rules per account type.
package accounts

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"banking-core/pkg/bank"
	"banking-core/pkg/store"
)

const (
	// numberMin/numberMax bound the 12-digit account number space.
	numberMin = int64(100_000_000_000)
	numberMax = int64(999_999_999_999)

	// DefaultMaxAttempts bounds the uniqueness retry loop. The space is
	// 9*10^11 numbers, so exhausting this budget means something is wrong
	// with the store, not with the randomness.
	DefaultMaxAttempts = 8
)

// NumberGenerator allocates unique random 12-digit account numbers with a
// bounded retry budget. A bloom filter remembers numbers already known to
// be taken so repeat collisions skip the store probe; a filter miss still
// consults the store, so the filter is advisory only and never a source
// of false uniqueness.
type NumberGenerator struct {
	store       store.Store
	maxAttempts int

	mu     sync.Mutex
	taken  *bloom.BloomFilter
	random func() string
}

// NewNumberGenerator creates a generator backed by st.
func NewNumberGenerator(st store.Store) *NumberGenerator {
	return &NumberGenerator{
		store:       st,
		maxAttempts: DefaultMaxAttempts,
		taken:       bloom.NewWithEstimates(1_000_000, 0.01),
		random:      randomNumber,
	}
}

// Next returns an account number not present in the store, or
// bank.ErrAccountNumberExhausted once the retry budget is spent.
func (g *NumberGenerator) Next(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		number := g.random()

		g.mu.Lock()
		seen := g.taken.TestString(number)
		g.mu.Unlock()
		if seen {
			continue
		}

		exists, err := g.store.AccountExists(ctx, number)
		if err != nil {
			return "", err
		}
		if exists {
			g.mu.Lock()
			g.taken.AddString(number)
			g.mu.Unlock()
			continue
		}

		// Claim it locally so a concurrent Next cannot hand out the same
		// number before CreateAccount lands.
		g.mu.Lock()
		g.taken.AddString(number)
		g.mu.Unlock()
		return number, nil
	}
	return "", fmt.Errorf("after %d attempts: %w", g.maxAttempts, bank.ErrAccountNumberExhausted)
}

func randomNumber() string {
	return strconv.FormatInt(numberMin+rand.Int63n(numberMax-numberMin+1), 10)
}
