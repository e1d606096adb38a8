package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exports measurements as Prometheus metrics.
type Prometheus struct {
	transfers       *prometheus.CounterVec
	transferAmount  prometheus.Counter
	transferLatency *prometheus.HistogramVec
	loanApps        *prometheus.CounterVec
	loanReviews     *prometheus.CounterVec
	storeFailures   *prometheus.CounterVec
	circuitState    prometheus.Gauge
}

// NewPrometheus creates the collector and registers its metrics with reg.
func NewPrometheus(namespace string, reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Total number of transfer attempts by outcome",
			},
			[]string{"outcome"},
		),
		transferAmount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transferred_amount_total",
				Help:      "Total amount moved by committed transfers",
			},
		),
		transferLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Transfer latency by outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		loanApps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loan_applications_total",
				Help:      "Total number of loan application attempts by outcome",
			},
			[]string{"outcome"},
		),
		loanReviews: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loan_reviews_total",
				Help:      "Total number of loan review attempts by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		storeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_failures_total",
				Help:      "Total number of datastore failures by operation",
			},
			[]string{"operation"},
		),
		circuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_circuit_open",
				Help:      "1 when the datastore circuit breaker is open, 0 otherwise",
			},
		),
	}

	reg.MustRegister(
		p.transfers, p.transferAmount, p.transferLatency,
		p.loanApps, p.loanReviews, p.storeFailures, p.circuitState,
	)

	return p
}

func (p *Prometheus) RecordTransfer(outcome string, amount float64, duration time.Duration) {
	p.transfers.WithLabelValues(outcome).Inc()
	p.transferLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == "ok" {
		p.transferAmount.Add(amount)
	}
}

func (p *Prometheus) RecordLoanApplication(outcome string) {
	p.loanApps.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) RecordLoanReview(action, outcome string) {
	p.loanReviews.WithLabelValues(action, outcome).Inc()
}

func (p *Prometheus) RecordStoreFailure(operation string) {
	p.storeFailures.WithLabelValues(operation).Inc()
}

func (p *Prometheus) RecordCircuitState(state string) {
	if state == "open" {
		p.circuitState.Set(1)
	} else {
		p.circuitState.Set(0)
	}
}
