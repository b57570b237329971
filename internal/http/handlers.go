package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mskaar/rain-alert-bot/internal/circuitbreaker"
)

// CheckRunner triggers one alert cycle on demand. Satisfied by the scheduler.
type CheckRunner interface {
	RunOnce(ctx context.Context) error
}

// Handler serves the operational endpoints. The bot has no user-facing HTTP
// surface; this exists for probes, scraping, and manual triggering.
type Handler struct {
	runner    CheckRunner
	breaker   *circuitbreaker.CircuitBreaker
	cachePing func() error
	startTime time.Time
	logger    *zap.Logger
}

// NewHandler returns a new Handler. breaker and cachePing may be nil when the
// corresponding component is disabled.
func NewHandler(runner CheckRunner, breaker *circuitbreaker.CircuitBreaker, cachePing func() error, logger *zap.Logger) *Handler {
	return &Handler{
		runner:    runner,
		breaker:   breaker,
		cachePing: cachePing,
		startTime: time.Now(),
		logger:    logger,
	}
}

// GetHealth handles GET /healthz. Reports degraded (503) when the circuit
// breaker is open or the cache backend is unreachable; the bot itself keeps
// running either way.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := make(map[string]string)

	if h.breaker != nil {
		state := h.breaker.State()
		checks["forecastApi"] = state.String()
		if state == circuitbreaker.StateOpen {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}
	if h.cachePing != nil {
		if err := h.cachePing(); err != nil {
			checks["cache"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["cache"] = "healthy"
		}
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "rain-alert-bot",
		"uptime":    time.Since(h.startTime).Round(time.Second).String(),
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// PostCheck handles POST /check. Runs one alert cycle immediately instead of
// waiting for the daily schedule. Intended for operators.
func (h *Handler) PostCheck(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, r, http.StatusServiceUnavailable, "NOT_READY", "scheduler not configured")
		return
	}
	if err := h.runner.RunOnce(r.Context()); err != nil {
		h.logger.Warn("manual check failed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "CHECK_FAILED", "alert cycle failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": "alert cycle completed",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response with code, message, and requestId
// (correlation ID) if available in the request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
