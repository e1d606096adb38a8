package metrics

import (
	"sync"
	"time"
)

// Memory counts measurements in process memory. Used by tests and as
// the collector when no Prometheus registry is wired.
type Memory struct {
	mu sync.Mutex

	transfers     map[string]int64
	amountMoved   float64
	loanApps      map[string]int64
	loanReviews   map[string]int64
	storeFailures map[string]int64
	circuitState  string
}

// NewMemory returns an empty in-memory collector.
func NewMemory() *Memory {
	return &Memory{
		transfers:     make(map[string]int64),
		loanApps:      make(map[string]int64),
		loanReviews:   make(map[string]int64),
		storeFailures: make(map[string]int64),
	}
}

func (m *Memory) RecordTransfer(outcome string, amount float64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[outcome]++
	if outcome == "ok" {
		m.amountMoved += amount
	}
}

func (m *Memory) RecordLoanApplication(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loanApps[outcome]++
}

func (m *Memory) RecordLoanReview(action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loanReviews[action+":"+outcome]++
}

func (m *Memory) RecordStoreFailure(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeFailures[operation]++
}

func (m *Memory) RecordCircuitState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitState = state
}

// Transfers returns the count of transfer attempts with the given outcome.
func (m *Memory) Transfers(outcome string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transfers[outcome]
}

// AmountMoved returns the total amount moved by successful transfers.
func (m *Memory) AmountMoved() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.amountMoved
}

// LoanReviews returns the count of reviews for an action/outcome pair.
func (m *Memory) LoanReviews(action, outcome string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loanReviews[action+":"+outcome]
}

// CircuitState returns the last recorded breaker state.
func (m *Memory) CircuitState() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.circuitState
}
