package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook result labels. The webhook_requests_total counter carries exactly
// these four values.
const (
	ResultCreated          = "created"
	ResultDuplicate        = "duplicate"
	ResultInvalidSignature = "invalid_signature"
	ResultValidationError  = "validation_error"
)

// Registry owns a process-scoped prometheus registry. It is passed by
// reference to handlers and middleware instead of living in package globals,
// so tests can run isolated instances side by side.
type Registry struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	webhookRequestsTotal *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec

	circuitBreakerState    *prometheus.GaugeVec
	circuitBreakerRequests *prometheus.CounterVec
	circuitBreakerFailures *prometheus.CounterVec

	rateLimitRequestsTotal *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests by path and status (count)",
			},
			[]string{"path", "status"},
		),

		webhookRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_requests_total",
				Help: "Total webhook requests by processing result (count)",
			},
			[]string{"result"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_ms",
				Help:    "HTTP request latency in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"path"},
		),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
			},
			[]string{"name"},
		),

		circuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_requests_total",
				Help: "Total number of requests through circuit breaker (count)",
			},
			[]string{"name", "state"},
		),

		circuitBreakerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_failures_total",
				Help: "Total number of failures through circuit breaker (count)",
			},
			[]string{"name"},
		),

		rateLimitRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_requests_total",
				Help: "Total number of requests checked against rate limit (count)",
			},
			[]string{"status"},
		),
	}

	r.registry.MustRegister(
		r.httpRequestsTotal,
		r.webhookRequestsTotal,
		r.httpRequestDuration,
		r.circuitBreakerState,
		r.circuitBreakerRequests,
		r.circuitBreakerFailures,
		r.rateLimitRequestsTotal,
	)

	return r
}

// RecordRequest increments the (path, status) counter and feeds the latency
// histogram for the path. Safe for unbounded concurrent callers.
func (r *Registry) RecordRequest(path string, status int, latency time.Duration) {
	r.httpRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	r.httpRequestDuration.WithLabelValues(path).Observe(float64(latency.Milliseconds()))
}

// RecordWebhookResult increments the per-result webhook counter.
func (r *Registry) RecordWebhookResult(result string) {
	r.webhookRequestsTotal.WithLabelValues(result).Inc()
}

func (r *Registry) SetCircuitBreakerState(name string, state float64) {
	r.circuitBreakerState.WithLabelValues(name).Set(state)
}

func (r *Registry) IncCircuitBreakerRequest(name, state string, success bool) {
	r.circuitBreakerRequests.WithLabelValues(name, state).Inc()
	if !success {
		r.circuitBreakerFailures.WithLabelValues(name).Inc()
	}
}

func (r *Registry) IncRateLimitRequest(status string) {
	r.rateLimitRequestsTotal.WithLabelValues(status).Inc()
}

// WebhookRequestsTotal exposes the underlying counter for test assertions.
func (r *Registry) WebhookRequestsTotal() *prometheus.CounterVec {
	return r.webhookRequestsTotal
}

// Handler returns the scrape endpoint in prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for exposition-format snapshots in tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
