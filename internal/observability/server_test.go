package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-transcription-proxy/internal/observability/metrics"
)

func TestServer_Endpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordSubmitted("file")

	notReady := errors.New("store unavailable")
	tests := []struct {
		name   string
		ready  ReadinessFunc
		path   string
		status int
		body   string
	}{
		{"healthz", nil, "/healthz", http.StatusOK, "ok"},
		{"readyz", nil, "/readyz", http.StatusOK, "ready"},
		{"readyz failing", func(context.Context) error { return notReady }, "/readyz", http.StatusServiceUnavailable, "not ready"},
		{"metrics", nil, "/metrics", http.StatusOK, "transcription_proxy_transcriptions_submitted_total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(":0", reg, tt.ready)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestRequestMetrics_UsesRoutePattern(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(RequestMetrics(m))
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/items/{id}", http.MethodGet, "404")); got != 3 {
		t.Errorf("requests for pattern = %v, want 3", got)
	}
}
