package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepsight_client_requests_total",
		Help: "Total number of requests issued through the session client, by result kind",
	}, []string{"method", "result"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deepsight_client_request_duration_seconds",
		Help:    "Round trip time of requests that reached the network",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 12), // 10ms to ~20s
	}, []string{"method"})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepsight_client_token_refreshes_total",
		Help: "Access token refresh attempts",
	}, []string{"outcome"})

	CSRFProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepsight_client_csrf_probes_total",
		Help: "Probe requests issued to obtain the anti-forgery cookie",
	}, []string{"outcome"})

	AuthChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepsight_client_auth_checks_total",
		Help: "Session guard evaluations",
	}, []string{"outcome"})
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	OutcomeAuthenticated   = "authenticated"
	OutcomeUnauthenticated = "unauthenticated"
)
