package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-transcription-proxy/internal/app"
	"media-transcription-proxy/internal/config"
)

func newTestApp(t *testing.T) *app.Application {
	t.Helper()
	cfg := &config.Config{
		Service:       config.ServiceConfig{HTTPPort: "0", Environment: config.EnvDevelopment},
		Provider:      config.ProviderConfig{Name: "mock"},
		Callback:      config.CallbackConfig{Secret: "s3cret"},
		Store:         config.StoreConfig{Backend: "memory"},
		Observability: config.ObservabilityConfig{LogLevel: "error"},
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(a.Shutdown)
	return a
}

func TestRouter_Health(t *testing.T) {
	h := NewRouter(newTestApp(t))

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
}

func TestRouter_CallbackThenStatus(t *testing.T) {
	a := newTestApp(t)
	h := NewRouter(a)

	req := httptest.NewRequest(http.MethodPost, "/transcription-callback?resultId=job-1",
		strings.NewReader(`{"text":"hello world"}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d body=%s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcription-status/job-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Text != "hello world" {
		t.Errorf("unexpected body %+v %v", body, err)
	}

	if got := testutil.ToFloat64(a.Metrics.HTTPRequests.WithLabelValues("/transcription-status/{resultId}", http.MethodGet, "200")); got != 1 {
		t.Errorf("status route metric = %v, want 1", got)
	}
}

func TestRouter_UnknownStatus(t *testing.T) {
	h := NewRouter(newTestApp(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcription-status/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
