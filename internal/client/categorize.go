package client

import (
	"context"
	"errors"
	"strings"

	"github.com/mskaar/rain-alert-bot/internal/circuitbreaker"
	"github.com/mskaar/rain-alert-bot/internal/forecast"
	"github.com/mskaar/rain-alert-bot/internal/met"
)

// ErrorCategory is a stable label for error classification in metrics and
// cycle-failure reports.
type ErrorCategory string

const (
	ErrorCategoryTimeout           ErrorCategory = "timeout"
	ErrorCategoryNetwork           ErrorCategory = "network"
	ErrorCategoryForbidden         ErrorCategory = "forbidden"
	ErrorCategoryRateLimited       ErrorCategory = "rate_limited"
	ErrorCategoryUpstream5xx       ErrorCategory = "upstream_5xx"
	ErrorCategoryMalformedDocument ErrorCategory = "malformed_document"
	ErrorCategoryNoForecast        ErrorCategory = "no_forecast"
	ErrorCategoryMissingSummary    ErrorCategory = "missing_summary"
	ErrorCategoryCircuitOpen       ErrorCategory = "circuit_open"
	ErrorCategoryCache             ErrorCategory = "cache"
	ErrorCategoryUnknown           ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	case errors.Is(err, ErrForbidden):
		return ErrorCategoryForbidden
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstream5xx
	case errors.Is(err, met.ErrMalformedDocument):
		return ErrorCategoryMalformedDocument
	case errors.Is(err, forecast.ErrNoForecastAvailable):
		return ErrorCategoryNoForecast
	case errors.Is(err, forecast.ErrMissingSummaryWindow):
		return ErrorCategoryMissingSummary
	case errors.Is(err, circuitbreaker.ErrOpen):
		return ErrorCategoryCircuitOpen
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "context deadline exceeded"):
		return ErrorCategoryTimeout
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"):
		return ErrorCategoryNetwork
	case strings.Contains(errStr, "cache"):
		return ErrorCategoryCache
	}
	return ErrorCategoryUnknown
}
