package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mskaar/rain-alert-bot/internal/circuitbreaker"
)

type mockRunner struct {
	err   error
	calls int
}

func (m *mockRunner) RunOnce(ctx context.Context) error {
	m.calls++
	return m.err
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

// TestGetHealth_Healthy verifies the baseline healthy report.
func TestGetHealth_Healthy(t *testing.T) {
	breaker := circuitbreaker.New(circuitbreaker.Config{})
	h := NewHandler(&mockRunner{}, breaker, func() error { return nil }, zap.NewNop())

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	checks := body["checks"].(map[string]interface{})
	if checks["forecastApi"] != "closed" {
		t.Errorf("forecastApi check = %v, want closed", checks["forecastApi"])
	}
	if checks["cache"] != "healthy" {
		t.Errorf("cache check = %v, want healthy", checks["cache"])
	}
}

// TestGetHealth_OpenBreaker verifies an open circuit degrades health to 503.
func TestGetHealth_OpenBreaker(t *testing.T) {
	breaker := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 1, Cooldown: time.Minute})
	_ = breaker.Call(func() error { return errors.New("boom") })

	h := NewHandler(&mockRunner{}, breaker, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
}

// TestGetHealth_CacheUnreachable verifies a failing cache ping degrades
// health.
func TestGetHealth_CacheUnreachable(t *testing.T) {
	h := NewHandler(&mockRunner{}, nil, func() error { return errors.New("no route") }, zap.NewNop())
	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	checks := decodeBody(t, rec)["checks"].(map[string]interface{})
	if checks["cache"] != "unhealthy" {
		t.Errorf("cache check = %v, want unhealthy", checks["cache"])
	}
}

// TestGetHealth_NoOptionalChecks verifies nil breaker and nil cache ping
// report healthy with no checks.
func TestGetHealth_NoOptionalChecks(t *testing.T) {
	h := NewHandler(&mockRunner{}, nil, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// TestPostCheck verifies the manual trigger runs one cycle.
func TestPostCheck(t *testing.T) {
	runner := &mockRunner{}
	h := NewHandler(runner, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.PostCheck(rec, httptest.NewRequest("POST", "/check", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if runner.calls != 1 {
		t.Errorf("RunOnce calls = %d, want 1", runner.calls)
	}
}

// TestPostCheck_CycleFails verifies a failing cycle reports 502 with the
// structured error shape.
func TestPostCheck_CycleFails(t *testing.T) {
	h := NewHandler(&mockRunner{err: errors.New("upstream down")}, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.PostCheck(rec, httptest.NewRequest("POST", "/check", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	errBody := decodeBody(t, rec)["error"].(map[string]interface{})
	if errBody["code"] != "CHECK_FAILED" {
		t.Errorf("error code = %v, want CHECK_FAILED", errBody["code"])
	}
}
