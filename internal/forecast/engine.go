// Package forecast filters a parsed forecast series down to rainy hours and
// resolves representative weather symbols. Everything here is a pure
// function of its inputs: no I/O, no mutation, safe to call concurrently.
package forecast

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mskaar/rain-alert-bot/internal/met"
	"github.com/mskaar/rain-alert-bot/internal/models"
)

// ErrNoForecastAvailable is returned when the requested instant lies beyond
// the returned forecast horizon. Recoverable: retry later or report unknown.
var ErrNoForecastAvailable = errors.New("no forecast available for requested time")

// ErrMissingSummaryWindow is returned when the step answering a symbol
// lookup carries no 12-hour summary, which happens at the far horizon edge.
// Recoverable: fall back to a default symbol.
var ErrMissingSummaryWindow = errors.New("summary window missing for time step")

// EvaluateRainyPeriod returns the hours within the query period that qualify
// as rainy under the given policy, or nil when none do. The period is closed
// on both ends. Steps without a next-1-hour summary are skipped entirely;
// they contribute nothing to the output. Qualifying hours keep the ascending
// order of the input series and carry the document's update timestamp and
// the query's coordinates.
//
// A nil return means the forecast holds no qualifying hours. Callers treat
// that as a dry day, not an error.
func EvaluateRainyPeriod(query models.RainyForecastPeriodQuery, doc *met.Document, policy models.RainPolicy) *models.RainyForecastPeriod {
	var hours []models.RainyForecastHour
	for _, step := range doc.Series {
		if !query.Period.Contains(step.Time) {
			continue
		}
		win := step.Next1Hour
		if win == nil || !isRainy(win, policy) {
			continue
		}
		hours = append(hours, models.RainyForecastHour{
			Time:                       step.Time,
			SymbolCode:                 win.SymbolCode,
			PrecipitationAmount:        *win.Details.PrecipitationAmount,
			PrecipitationAmountMin:     win.Details.PrecipitationAmountMin,
			PrecipitationAmountMax:     win.Details.PrecipitationAmountMax,
			ProbabilityOfPrecipitation: win.Details.ProbabilityOfPrecipitation,
		})
	}
	if len(hours) == 0 {
		return nil
	}
	return &models.RainyForecastPeriod{
		UpdatedAt:   doc.UpdatedAt,
		Coordinates: query.Coordinates,
		Hours:       hours,
	}
}

// isRainy applies the strictness policy to a next-1-hour window. Under every
// policy the best-estimate precipitation amount must be reported and
// strictly positive; an absent amount never qualifies, even when other
// fields hint at rain.
func isRainy(win *met.SummaryWindow, policy models.RainPolicy) bool {
	if !isRainyEstimated(win) {
		return false
	}
	if policy == models.PolicyHighProbabilityOnly {
		return isRainySymbol(win.SymbolCode)
	}
	return true
}

// isRainyEstimated reports whether the window's best-estimate amount is
// present and positive.
func isRainyEstimated(win *met.SummaryWindow) bool {
	amount := win.Details.PrecipitationAmount
	return amount != nil && *amount > 0
}

// isRainySymbol reports whether a symbol code names rain. Codes like
// "lightrain", "rain_showers" or "heavyrainandthunder" match; "cloudy" and
// "shower"-only codes do not.
func isRainySymbol(code string) bool {
	return strings.Contains(code, "rain")
}

// SymbolCodeAt returns the 12-hour summary symbol of the earliest step whose
// time is at or after instant. Fails with ErrNoForecastAvailable when the
// instant lies past every step, and with ErrMissingSummaryWindow when the
// answering step has no 12-hour summary.
func SymbolCodeAt(instant time.Time, series met.ForecastTimeSeries) (string, error) {
	// Series is ascending, so the earliest qualifying step is found by
	// binary search.
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Time.Before(instant)
	})
	if i == len(series) {
		return "", fmt.Errorf("%w: %s is past the forecast horizon", ErrNoForecastAvailable, instant.Format(time.RFC3339))
	}
	step := series[i]
	if step.Next12Hour == nil {
		return "", fmt.Errorf("%w: step at %s has no 12h summary", ErrMissingSummaryWindow, step.Time.Format(time.RFC3339))
	}
	return step.Next12Hour.SymbolCode, nil
}
