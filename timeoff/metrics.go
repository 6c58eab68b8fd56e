package timeoff

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain metrics. Recorded only after the ledger update has committed.
var (
	requestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leave_requests_created_total",
		Help: "Leave requests accepted as pending",
	})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_decisions_total",
		Help: "Decisions on pending requests",
	}, []string{"outcome"})

	daysDeducted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_days_deducted_total",
		Help: "Days charged to balances on approval",
	}, []string{"bucket"})

	daysRefunded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_days_refunded_total",
		Help: "Days returned to balances on cancellation",
	}, []string{"bucket"})

	editsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leave_edits_total",
		Help: "Edits applied to approved requests",
	})

	refundsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leave_refunds_rejected_total",
		Help: "Cancellations rejected for exceeding the original deduction",
	})
)
