package met

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mskaar/rain-alert-bot/internal/models"
	"github.com/mskaar/rain-alert-bot/internal/timeutil"
)

// ErrMalformedDocument is returned when a required field is missing or has
// an incompatible type. Callers should abort the fetch cycle and report;
// there is no local recovery.
var ErrMalformedDocument = errors.New("malformed forecast document")

// Raw decode targets. Required fields are pointers so absence is detectable
// after unmarshalling; unknown fields in the source are ignored for forward
// compatibility. Numeric fields decode as float64, which accepts integer and
// floating-point encodings but rejects booleans and strings.

type rawDocument struct {
	Type       *string        `json:"type"`
	Geometry   *rawGeometry   `json:"geometry"`
	Properties *rawProperties `json:"properties"`
}

type rawGeometry struct {
	Type        *string   `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type rawProperties struct {
	Meta       *rawMeta  `json:"meta"`
	Timeseries []rawStep `json:"timeseries"`
}

type rawMeta struct {
	UpdatedAt *string           `json:"updated_at"`
	Units     map[string]string `json:"units"`
}

type rawStep struct {
	Time *string  `json:"time"`
	Data *rawData `json:"data"`
}

type rawData struct {
	Instant    *rawInstant `json:"instant"`
	Next1Hour  *rawWindow  `json:"next_1_hours"`
	Next6Hour  *rawWindow  `json:"next_6_hours"`
	Next12Hour *rawWindow  `json:"next_12_hours"`
}

type rawInstant struct {
	Details map[string]float64 `json:"details"`
}

type rawWindow struct {
	Summary *rawSummary       `json:"summary"`
	Details *rawWindowDetails `json:"details"`
}

type rawSummary struct {
	SymbolCode       *string `json:"symbol_code"`
	SymbolConfidence *string `json:"symbol_confidence"`
}

type rawWindowDetails struct {
	AirTemperatureMax           *float64 `json:"air_temperature_max"`
	AirTemperatureMin           *float64 `json:"air_temperature_min"`
	PrecipitationAmount         *float64 `json:"precipitation_amount"`
	PrecipitationAmountMin      *float64 `json:"precipitation_amount_min"`
	PrecipitationAmountMax      *float64 `json:"precipitation_amount_max"`
	ProbabilityOfPrecipitation  *float64 `json:"probability_of_precipitation"`
	ProbabilityOfThunder        *float64 `json:"probability_of_thunder"`
	UltravioletIndexClearSkyMax *float64 `json:"ultraviolet_index_clear_sky_max"`
}

// Parse decodes a raw locationforecast "complete" response into a Document.
// Returns ErrMalformedDocument (wrapped with the offending field) when a
// required field is absent or has the wrong type, when a timestamp lacks an
// offset or fails to parse, or when the series is not strictly ascending.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	if raw.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedDocument)
	}
	if raw.Geometry == nil {
		return nil, fmt.Errorf("%w: missing geometry", ErrMalformedDocument)
	}
	if raw.Geometry.Type == nil || len(raw.Geometry.Coordinates) < 2 {
		return nil, fmt.Errorf("%w: incomplete geometry", ErrMalformedDocument)
	}
	if raw.Properties == nil {
		return nil, fmt.Errorf("%w: missing properties", ErrMalformedDocument)
	}
	if raw.Properties.Meta == nil {
		return nil, fmt.Errorf("%w: missing properties.meta", ErrMalformedDocument)
	}
	if raw.Properties.Meta.UpdatedAt == nil {
		return nil, fmt.Errorf("%w: missing properties.meta.updated_at", ErrMalformedDocument)
	}
	if raw.Properties.Timeseries == nil {
		return nil, fmt.Errorf("%w: missing properties.timeseries", ErrMalformedDocument)
	}

	updatedAt, err := timeutil.ParseInstant(*raw.Properties.Meta.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: properties.meta.updated_at: %v", ErrMalformedDocument, err)
	}

	series := make(ForecastTimeSeries, 0, len(raw.Properties.Timeseries))
	for i, step := range raw.Properties.Timeseries {
		parsed, err := parseStep(step)
		if err != nil {
			return nil, fmt.Errorf("%w: timeseries[%d]: %v", ErrMalformedDocument, i, err)
		}
		if i > 0 && !series[i-1].Time.Before(parsed.Time) {
			return nil, fmt.Errorf("%w: timeseries[%d]: not in ascending time order", ErrMalformedDocument, i)
		}
		series = append(series, parsed)
	}

	// Geometry coordinates are [lon, lat, altitude].
	coords := models.Coordinates{
		Lat: raw.Geometry.Coordinates[1],
		Lon: raw.Geometry.Coordinates[0],
	}

	return &Document{
		UpdatedAt:   updatedAt,
		Units:       raw.Properties.Meta.Units,
		Coordinates: coords,
		Series:      series,
	}, nil
}

func parseStep(step rawStep) (TimeStep, error) {
	if step.Time == nil {
		return TimeStep{}, errors.New("missing time")
	}
	t, err := timeutil.ParseInstant(*step.Time)
	if err != nil {
		return TimeStep{}, fmt.Errorf("time: %v", err)
	}
	if step.Data == nil {
		return TimeStep{}, errors.New("missing data")
	}
	if step.Data.Instant == nil || step.Data.Instant.Details == nil {
		return TimeStep{}, errors.New("missing data.instant")
	}

	out := TimeStep{
		Time:    t,
		Instant: step.Data.Instant.Details,
	}
	if out.Next1Hour, err = parseWindow(step.Data.Next1Hour, "next_1_hours"); err != nil {
		return TimeStep{}, err
	}
	if out.Next6Hour, err = parseWindow(step.Data.Next6Hour, "next_6_hours"); err != nil {
		return TimeStep{}, err
	}
	if out.Next12Hour, err = parseWindow(step.Data.Next12Hour, "next_12_hours"); err != nil {
		return TimeStep{}, err
	}
	return out, nil
}

// parseWindow converts an optional summary window. The window itself may be
// absent (nil in, nil out), but a present window must carry a summary with a
// symbol code. The details sub-object may be entirely or partially absent;
// missing figures stay nil.
func parseWindow(w *rawWindow, name string) (*SummaryWindow, error) {
	if w == nil {
		return nil, nil
	}
	if w.Summary == nil || w.Summary.SymbolCode == nil {
		return nil, fmt.Errorf("%s: missing summary.symbol_code", name)
	}
	out := &SummaryWindow{SymbolCode: *w.Summary.SymbolCode}
	if w.Summary.SymbolConfidence != nil {
		out.SymbolConfidence = *w.Summary.SymbolConfidence
	}
	if w.Details != nil {
		out.Details = WindowDetails{
			AirTemperatureMax:           w.Details.AirTemperatureMax,
			AirTemperatureMin:           w.Details.AirTemperatureMin,
			PrecipitationAmount:         w.Details.PrecipitationAmount,
			PrecipitationAmountMin:      w.Details.PrecipitationAmountMin,
			PrecipitationAmountMax:      w.Details.PrecipitationAmountMax,
			ProbabilityOfPrecipitation:  w.Details.ProbabilityOfPrecipitation,
			ProbabilityOfThunder:        w.Details.ProbabilityOfThunder,
			UltravioletIndexClearSkyMax: w.Details.UltravioletIndexClearSkyMax,
		}
	}
	return out, nil
}
