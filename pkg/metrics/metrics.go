package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters and gauges exposed on /metrics.
var (
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finfortress_auth_attempts_total",
		Help: "Authentication attempts by outcome",
	}, []string{"outcome"})

	ChallengeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finfortress_challenge_results_total",
		Help: "Second-factor challenge results by method and outcome",
	}, []string{"method", "outcome"})

	EnrollmentsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finfortress_enrollments_completed_total",
		Help: "Completed two-factor enrollments",
	})

	RecoveryCodesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finfortress_recovery_codes_consumed_total",
		Help: "Recovery codes consumed during unlock",
	})

	UnlockGrantsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finfortress_unlock_grants_issued_total",
		Help: "Unlock grants issued after successful verification",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finfortress_active_sessions",
		Help: "Currently active sessions",
	})

	TransactionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finfortress_transactions_recorded_total",
		Help: "Ledger transactions recorded by flow type",
	}, []string{"flow_type"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finfortress_api_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// RecordAuthAttempt tracks a password authentication attempt.
func RecordAuthAttempt(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	AuthAttempts.WithLabelValues(outcome).Inc()
}

// RecordChallenge tracks a second-factor verification attempt.
func RecordChallenge(method string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	ChallengeResults.WithLabelValues(method, outcome).Inc()
}
