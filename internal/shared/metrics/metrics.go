package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every copilot series. It is separate from the default
// registry so tests can gather it without process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_runs_total",
			Help: "Recommendation cycles by final outcome",
		},
		[]string{"outcome"},
	)

	agentRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_agent_requests_total",
			Help: "Calls to the recommendation agent",
		},
		[]string{"op", "status"},
	)

	agentRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copilot_agent_request_duration_seconds",
			Help:    "Agent call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"op"},
	)

	scoringFaultsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_scoring_faults_total",
			Help: "Catalogue entries whose scoring function failed",
		},
		[]string{"product"},
	)

	packTogglesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_pack_toggles_total",
			Help: "Quote pack toggles by resulting action",
		},
		[]string{"action"},
	)

	quoteRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_quote_requests_total",
			Help: "Quote hand-offs by status",
		},
		[]string{"status"},
	)
)

// IncRun records the outcome of a recommendation cycle.
func IncRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAgentRequest records one agent call.
func ObserveAgentRequest(op, status string, seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	agentRequestsTotal.WithLabelValues(op, status).Inc()
	agentRequestDuration.WithLabelValues(op).Observe(seconds)
}

// IncScoringFault records a product whose scoring function failed.
func IncScoringFault(productKey string) {
	scoringFaultsTotal.WithLabelValues(productKey).Inc()
}

// IncPackToggle records a quote pack toggle.
func IncPackToggle(action string) {
	packTogglesTotal.WithLabelValues(action).Inc()
}

// IncQuoteRequest records a quote hand-off attempt.
func IncQuoteRequest(status string) {
	quoteRequestsTotal.WithLabelValues(status).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
