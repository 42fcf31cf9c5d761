package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sink/{sid}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Wrap(mux)

	for _, sid := range []string{"DG1", "DG2", "DG3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sink/"+sid, nil))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "GET /sink/{sid}", "404")); got != 3 {
		t.Fatalf("expected 3 requests on pattern label, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}

func TestNewMetricsPerRegistry(t *testing.T) {
	// separate registries must not collide on registration
	for i := 0; i < 2; i++ {
		reg := prometheus.NewRegistry()
		NewHTTPMetrics(reg)
		NewWebhookMetrics(reg)
	}
}

func TestWebhookMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.ObserveDelivery(true, 2)
	m.ObserveDelivery(false, 0)
	m.ObserveDelivery(false, 1)
	m.ObserveJournalError()

	expected := `
# HELP sinkrelay_webhook_deliveries_total Webhook deliveries received, by signature outcome.
# TYPE sinkrelay_webhook_deliveries_total counter
sinkrelay_webhook_deliveries_total{signature="invalid"} 2
sinkrelay_webhook_deliveries_total{signature="valid"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "sinkrelay_webhook_deliveries_total"); err != nil {
		t.Fatalf("unexpected deliveries metric: %v", err)
	}
	if got := testutil.ToFloat64(m.events); got != 3 {
		t.Fatalf("expected 3 events, got %v", got)
	}
	if got := testutil.ToFloat64(m.journal); got != 1 {
		t.Fatalf("expected 1 journal error, got %v", got)
	}

	var nilMetrics *WebhookMetrics
	nilMetrics.ObserveDelivery(true, 1)
	nilMetrics.ObserveJournalError()
}
