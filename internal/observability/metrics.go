// Package observability exposes Prometheus metrics for the session engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ApprovalsRegistered counts pending approval requests registered.
	ApprovalsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "approvals_registered_total",
		Help: "Total pending approval requests registered.",
	})

	// ApprovalsResolved counts resolved approval requests by path:
	// "decision" for explicit director decisions, "timeout" for fallback.
	ApprovalsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approvals_resolved_total",
		Help: "Total approval requests resolved, labeled by resolution path.",
	}, []string{"path"})

	// ApprovalsPending tracks approval requests currently awaiting a
	// decision.
	ApprovalsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "approvals_pending",
		Help: "Number of approval requests currently pending.",
	})

	// ChallengeOutcomes counts resolved challenge outcomes by category.
	ChallengeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "challenge_outcomes_total",
		Help: "Total resolved challenge outcomes, labeled by category.",
	}, []string{"category"})
)
