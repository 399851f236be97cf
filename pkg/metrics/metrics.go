// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DisbursementsTotal counts successfully disbursed loans.
	DisbursementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loancore_disbursements_total",
		Help: "Number of loans disbursed.",
	})

	// RepaymentsTotal counts successfully recorded repayments.
	RepaymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loancore_repayments_total",
		Help: "Number of repayments recorded.",
	})

	// RepaymentConflictsTotal counts repayments rejected by the optimistic
	// concurrency check. Callers retry these.
	RepaymentConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loancore_repayment_conflicts_total",
		Help: "Number of repayments rejected due to a version conflict.",
	})
)
