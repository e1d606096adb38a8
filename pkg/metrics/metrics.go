// Package metrics defines the collector interface for the banking core
// and its Prometheus and in-memory implementations.
package metrics

import "time"

// Collector receives operational measurements from the transfer engine,
// the loan lifecycle and the datastore wrappers. Outcome labels are the
// low-cardinality strings produced by bank.Classify.
type Collector interface {
	// RecordTransfer records one transfer attempt. amount is the transfer
	// amount in currency units; it is only meaningful when outcome is "ok".
	RecordTransfer(outcome string, amount float64, duration time.Duration)

	// RecordLoanApplication records one loan application attempt.
	RecordLoanApplication(outcome string)

	// RecordLoanReview records one review attempt with its requested action.
	RecordLoanReview(action, outcome string)

	// RecordStoreFailure records a datastore failure for the given operation.
	RecordStoreFailure(operation string)

	// RecordCircuitState records a datastore circuit breaker state change.
	RecordCircuitState(state string)
}

// Noop discards all measurements. It is the default collector.
type Noop struct{}

func (Noop) RecordTransfer(string, float64, time.Duration) {}
func (Noop) RecordLoanApplication(string)                  {}
func (Noop) RecordLoanReview(string, string)               {}
func (Noop) RecordStoreFailure(string)                     {}
func (Noop) RecordCircuitState(string)                     {}
