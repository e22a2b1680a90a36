package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRecordRequest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("/webhook", 200, 5*time.Millisecond)
	reg.RecordRequest("/webhook", 200, 7*time.Millisecond)
	reg.RecordRequest("/webhook", 401, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("/webhook", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("/webhook", "401")))
}

func TestRecordWebhookResult(t *testing.T) {
	reg := NewRegistry()

	reg.RecordWebhookResult(ResultCreated)
	reg.RecordWebhookResult(ResultCreated)
	reg.RecordWebhookResult(ResultDuplicate)

	assert.Equal(t, float64(2), testutil.ToFloat64(reg.webhookRequestsTotal.WithLabelValues(ResultCreated)))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.webhookRequestsTotal.WithLabelValues(ResultDuplicate)))
}

func TestConcurrentRecording(t *testing.T) {
	reg := NewRegistry()

	const workers = 8
	const perWorker = 250

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := 0; j < perWorker; j++ {
				reg.RecordRequest("/webhook", 200, time.Millisecond)
				reg.RecordWebhookResult(ResultCreated)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, float64(workers*perWorker), testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("/webhook", "200")))
	assert.Equal(t, float64(workers*perWorker), testutil.ToFloat64(reg.webhookRequestsTotal.WithLabelValues(ResultCreated)))
}

func TestRegistriesAreIsolated(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.RecordWebhookResult(ResultCreated)

	assert.Equal(t, float64(1), testutil.ToFloat64(a.webhookRequestsTotal.WithLabelValues(ResultCreated)))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.webhookRequestsTotal.WithLabelValues(ResultCreated)))
}

func TestHandlerExposition(t *testing.T) {
	reg := NewRegistry()
	reg.RecordWebhookResult(ResultInvalidSignature)
	reg.RecordRequest("/messages", 200, 12*time.Millisecond)
	reg.IncRateLimitRequest("allowed")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	reg.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `webhook_requests_total{result="invalid_signature"} 1`)
	assert.Contains(t, body, `http_requests_total{path="/messages",status="200"} 1`)
	assert.Contains(t, body, `http_request_duration_ms_bucket{path="/messages",le="25"} 1`)
	assert.Contains(t, body, `rate_limit_requests_total{status="allowed"} 1`)
}

func TestCircuitBreakerMetrics(t *testing.T) {
	reg := NewRegistry()

	reg.SetCircuitBreakerState("postgres-messages", 2)
	reg.IncCircuitBreakerRequest("postgres-messages", "closed", false)

	assert.Equal(t, float64(2), testutil.ToFloat64(reg.circuitBreakerState.WithLabelValues("postgres-messages")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.circuitBreakerRequests.WithLabelValues("postgres-messages", "closed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.circuitBreakerFailures.WithLabelValues("postgres-messages")))
}
