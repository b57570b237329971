package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPeriod is returned when a time period would end before it starts.
var ErrInvalidPeriod = errors.New("period end precedes start")

// Coordinates identifies a forecast location. Used as the cache and request
// key by the fetch layer, so Key must stay stable for a given lat/lon.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Key returns a stable cache/request key for the location. Coordinates are
// rounded to four decimals, matching the precision api.met.no accepts.
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", c.Lat, c.Lon)
}

// TimePeriod is a closed interval [Start, End]. Both bounds are inclusive:
// a forecast step stamped exactly Start or exactly End belongs to the period.
type TimePeriod struct {
	Start time.Time
	End   time.Time
}

// NewTimePeriod constructs a TimePeriod, enforcing Start <= End.
func NewTimePeriod(start, end time.Time) (TimePeriod, error) {
	if end.Before(start) {
		return TimePeriod{}, fmt.Errorf("%w: start %s, end %s", ErrInvalidPeriod, start, end)
	}
	return TimePeriod{Start: start, End: end}, nil
}

// Contains reports whether t falls within the period, bounds included.
func (p TimePeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// In re-expresses the period in another zone without changing the absolute
// instants it spans.
func (p TimePeriod) In(loc *time.Location) TimePeriod {
	return TimePeriod{Start: p.Start.In(loc), End: p.End.In(loc)}
}

func (p TimePeriod) String() string {
	return fmt.Sprintf("[%s, %s]", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}

// RainPolicy selects the strictness of the rainy-hour predicate.
type RainPolicy int

const (
	// PolicyEstimatedAny marks an hour rainy when the best-estimate
	// precipitation amount is reported and strictly positive.
	PolicyEstimatedAny RainPolicy = iota
	// PolicyHighProbabilityOnly additionally requires the symbol code to
	// name rain, excluding symbols like "cloudy" or "shower" that can
	// co-occur with a positive measured amount.
	PolicyHighProbabilityOnly
)

func (p RainPolicy) String() string {
	switch p {
	case PolicyEstimatedAny:
		return "estimated_any"
	case PolicyHighProbabilityOnly:
		return "high_probability_only"
	default:
		return "unknown"
	}
}

// ParseRainPolicy maps a config string to a RainPolicy.
func ParseRainPolicy(s string) (RainPolicy, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "estimated_any":
		return PolicyEstimatedAny, nil
	case "high_probability_only":
		return PolicyHighProbabilityOnly, nil
	default:
		return PolicyEstimatedAny, fmt.Errorf("unknown rain policy %q", s)
	}
}

// RainyForecastHour is one qualifying hour of a rainy forecast. Min, Max and
// Probability are nil when the provider did not report them; a nil pointer is
// "not reported", never zero.
type RainyForecastHour struct {
	Time                       time.Time
	SymbolCode                 string
	PrecipitationAmount        float64
	PrecipitationAmountMin     *float64
	PrecipitationAmountMax     *float64
	ProbabilityOfPrecipitation *float64
}

// RainyForecastPeriod aggregates the qualifying hours of one evaluation, in
// ascending time order. Absence of rain is represented by the evaluation
// returning nil, never by a RainyForecastPeriod with an empty Hours slice.
type RainyForecastPeriod struct {
	UpdatedAt   time.Time
	Coordinates Coordinates
	Hours       []RainyForecastHour
}

// RainyForecastPeriodQuery asks which hours within Period are rainy at
// Coordinates.
type RainyForecastPeriodQuery struct {
	Period      TimePeriod
	Coordinates Coordinates
}

// SymbolQuery asks for the representative 12-hour weather symbol at or after
// Instant.
type SymbolQuery struct {
	Instant     time.Time
	Coordinates Coordinates
}
