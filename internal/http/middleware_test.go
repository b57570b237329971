package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TestCorrelationIDMiddleware_Generates verifies a correlation ID is minted
// and echoed when the request carries none.
func TestCorrelationIDMiddleware_Generates(t *testing.T) {
	var ctxID interface{}
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctxID = r.Context().Value("correlation_id")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	header := rec.Header().Get("X-Correlation-ID")
	if header == "" {
		t.Fatal("X-Correlation-ID header not set")
	}
	if ctxID != header {
		t.Errorf("context correlation_id = %v, header = %q", ctxID, header)
	}
}

// TestCorrelationIDMiddleware_Propagates verifies an inbound ID is kept.
func TestCorrelationIDMiddleware_Propagates(t *testing.T) {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "cycle-abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != "cycle-abc-123" {
		t.Errorf("X-Correlation-ID = %q, want cycle-abc-123", got)
	}
}

// TestMetricsMiddleware verifies requests pass through with the status
// preserved.
func TestMetricsMiddleware(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// TestGetRoute verifies known routes map to stable labels.
func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/check", "/check"},
		{"/other", "/other"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.path, nil)
		if got := getRoute(r); got != tt.want {
			t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// TestStatusCodeString verifies status classes collapse to one label each.
func TestStatusCodeString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{404, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		if got := statusCodeString(tt.code); got != tt.want {
			t.Errorf("statusCodeString(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
