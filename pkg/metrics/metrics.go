// Package metrics exposes the Prometheus instrumentation the verification
// pipeline and credential engine report against.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VerifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acdp_verify_total",
			Help: "Total credential verifications, labeled by outcome.",
		},
		[]string{"result"},
	)

	VerifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "acdp_verify_duration_seconds",
			Help:    "Time spent running the verification pipeline.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "acdp_ratelimit_rejected_total",
			Help: "Verifications rejected for exceeding a credential's presentation budget.",
		},
	)

	DelegationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acdp_delegations_total",
			Help: "Delegation attempts, labeled by outcome.",
		},
		[]string{"result"},
	)

	IssuanceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acdp_issuance_total",
			Help: "Credential issuances, labeled by variant.",
		},
		[]string{"variant"},
	)
)

func init() {
	prometheus.MustRegister(VerifyTotal, VerifyDuration, RateLimitRejectedTotal, DelegationsTotal, IssuanceTotal)
}

// Handler returns the HTTP handler the gateway mounts at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveVerifyResult records the outcome and timing of one pipeline run.
func ObserveVerifyResult(result string, seconds float64) {
	VerifyTotal.WithLabelValues(result).Inc()
	VerifyDuration.Observe(seconds)
	if result == "rate_limit_exceeded" {
		RateLimitRejectedTotal.Inc()
	}
}
