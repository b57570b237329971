// Package met parses MET Norway locationforecast/2.0 "complete" documents
// into a typed time series. Required fields are enforced; the per-step
// summary windows and their detail figures are optional in the source and
// stay optional here, so "not reported" is never confused with zero.
package met

import (
	"time"

	"github.com/mskaar/rain-alert-bot/internal/models"
)

// Document is a fully parsed forecast response.
type Document struct {
	// UpdatedAt is when the provider last refreshed this forecast.
	UpdatedAt time.Time
	// Units maps metric names to their unit annotations, e.g.
	// "precipitation_amount" -> "mm".
	Units map[string]string
	// Coordinates is the location the forecast answers for, taken from the
	// document's geometry ([lon, lat, altitude] in the source).
	Coordinates models.Coordinates
	// Series is the ordered forecast time series, ascending by time.
	Series ForecastTimeSeries
}

// ForecastTimeSeries is an ordered sequence of time steps, sorted ascending
// by Time with no duplicates. The interval is typically hourly near-term and
// widens toward the forecast horizon.
type ForecastTimeSeries []TimeStep

// TimeStep is one entry of the forecast series.
type TimeStep struct {
	// Time is the instant this step describes.
	Time time.Time
	// Instant maps metric names to values valid precisely at Time
	// (air_temperature, relative_humidity, wind_speed, ...).
	Instant map[string]float64
	// Summary windows covering the next 1/6/12 hours from Time. Each may be
	// absent on a given step; coverage thins near the far horizon.
	Next1Hour  *SummaryWindow
	Next6Hour  *SummaryWindow
	Next12Hour *SummaryWindow
}

// SummaryWindow is a symbolic weather summary plus precipitation statistics
// for one of the 1/6/12-hour windows.
type SummaryWindow struct {
	SymbolCode string
	// SymbolConfidence is empty when the provider did not report one.
	SymbolConfidence string
	Details          WindowDetails
}

// WindowDetails holds the precipitation and temperature statistics of a
// summary window. Every field is optional in the source; nil means "not
// reported". Zero is a valid measurement and is kept distinct from nil.
type WindowDetails struct {
	AirTemperatureMax           *float64
	AirTemperatureMin           *float64
	PrecipitationAmount         *float64
	PrecipitationAmountMin      *float64
	PrecipitationAmountMax      *float64
	ProbabilityOfPrecipitation  *float64
	ProbabilityOfThunder        *float64
	UltravioletIndexClearSkyMax *float64
}
