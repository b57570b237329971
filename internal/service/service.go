// Package service orchestrates the daily rain check: it decides which
// period to ask about, fetches and evaluates the forecast, and resolves the
// representative weather symbol for the report.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mskaar/rain-alert-bot/internal/client"
	"github.com/mskaar/rain-alert-bot/internal/forecast"
	"github.com/mskaar/rain-alert-bot/internal/models"
	"github.com/mskaar/rain-alert-bot/internal/observability"
	"github.com/mskaar/rain-alert-bot/internal/timeutil"
)

// UnknownSymbol is reported when the forecast carries no usable 12-hour
// summary for the requested instant.
const UnknownSymbol = "unknown"

// symbolLookupHour is the local hour whose 12-hour summary represents the
// day in the report.
const symbolLookupHour = 8

// Report is the outcome of one rain check. Rainy is nil when the forecast
// holds no qualifying hours. An error means the check could not be
// completed at all.
type Report struct {
	// Date is local midnight of the day the report covers.
	Date time.Time
	// Rainy holds the qualifying hours, or nil when the day is dry.
	Rainy *models.RainyForecastPeriod
	// Symbol is the representative 12-hour symbol code for the day, or
	// UnknownSymbol when the forecast could not provide one.
	Symbol string
}

// AlertService runs rain checks for a fixed location and timezone.
type AlertService struct {
	client client.ForecastClient
	coords models.Coordinates
	loc    *time.Location
	policy models.RainPolicy
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewAlertService creates an AlertService. clock may be nil, in which case
// the real clock is used; tests pass a fake to pin "today".
func NewAlertService(fc client.ForecastClient, coords models.Coordinates, loc *time.Location, policy models.RainPolicy, clock clockwork.Clock, logger *zap.Logger) *AlertService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AlertService{
		client: fc,
		coords: coords,
		loc:    loc,
		policy: policy,
		clock:  clock,
		logger: logger,
	}
}

// CheckRainTomorrow evaluates tomorrow's local calendar day. One document
// fetch serves both the rainy-hour filter and the symbol lookup.
func (s *AlertService) CheckRainTomorrow(ctx context.Context) (*Report, error) {
	tomorrow := s.clock.Now().In(s.loc).AddDate(0, 0, 1)
	return s.CheckRainOn(ctx, tomorrow)
}

// CheckRainOn evaluates the full local calendar day containing ref.
func (s *AlertService) CheckRainOn(ctx context.Context, ref time.Time) (*Report, error) {
	ref = timeutil.ConvertToZone(ref, s.loc)
	period, err := timeutil.PeriodForFullDays(ref, 1)
	if err != nil {
		return nil, fmt.Errorf("build period: %w", err)
	}

	doc, err := s.client.GetCompleteForecast(ctx, s.coords)
	if err != nil {
		observability.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	query := models.RainyForecastPeriodQuery{Period: period, Coordinates: s.coords}
	rainy := forecast.EvaluateRainyPeriod(query, doc, s.policy)

	report := &Report{Date: period.Start, Rainy: rainy, Symbol: UnknownSymbol}
	if rainy == nil {
		observability.EvaluationsTotal.WithLabelValues("no_rain").Inc()
		s.logger.Info("no rain in forecast",
			zap.String("date", period.Start.Format("2006-01-02")),
			zap.String("period", period.String()))
		return report, nil
	}
	observability.EvaluationsTotal.WithLabelValues("rain").Inc()
	s.logger.Info("rainy forecast found",
		zap.String("date", period.Start.Format("2006-01-02")),
		zap.Int("hours", len(rainy.Hours)),
		zap.String("policy", s.policy.String()))

	// The 08:00 summary covers the part of the day people plan around.
	// Missing summaries at the horizon edge degrade to UnknownSymbol rather
	// than failing the whole report.
	lookupAt := period.Start.Add(symbolLookupHour * time.Hour)
	symbol, err := forecast.SymbolCodeAt(lookupAt, doc.Series)
	switch {
	case err == nil:
		report.Symbol = symbol
	case errors.Is(err, forecast.ErrMissingSummaryWindow), errors.Is(err, forecast.ErrNoForecastAvailable):
		s.logger.Warn("no representative symbol for report", zap.Error(err))
	default:
		return nil, err
	}
	return report, nil
}

// Coordinates returns the location this service answers for.
func (s *AlertService) Coordinates() models.Coordinates {
	return s.coords
}

// Location returns the timezone reports are expressed in.
func (s *AlertService) Location() *time.Location {
	return s.loc
}
