package timeutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mskaar/rain-alert-bot/internal/models"
)

// ErrNaiveTimestamp is returned when a timestamp string carries no timezone
// offset. Accepting one silently would treat it as local time, which is the
// classic bug this guard exists to prevent. Naive input indicates a caller
// bug and must fail fast.
var ErrNaiveTimestamp = errors.New("timestamp has no timezone offset")

// ErrInvalidTimeOfDay is returned when a time-of-day string is not HH:MM or
// HH:MM:SS.
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// clock is a package-level time source so tests can freeze "today" when
// resolving daily times of day. Production code uses the real clock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// naiveLayouts are ISO-8601 shapes that are valid timestamps but carry no
// offset. Matching one of these distinguishes "naive" from "garbage".
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseInstant parses an ISO-8601 timestamp that must carry an explicit
// offset ("Z" or ±hh:mm). A well-formed timestamp without an offset fails
// with ErrNaiveTimestamp; anything else fails with the underlying parse
// error.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if _, naiveErr := time.Parse(layout, s); naiveErr == nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrNaiveTimestamp, s)
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
}

// ConvertToZone re-expresses t in the target zone without changing the
// absolute instant.
func ConvertToZone(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}

// PeriodForFullDays returns the closed period covering numDays full calendar
// days, starting at local midnight of ref's calendar date in ref's zone. The
// end is the last representable instant before the following midnight.
func PeriodForFullDays(ref time.Time, numDays int) (models.TimePeriod, error) {
	if numDays < 1 {
		return models.TimePeriod{}, fmt.Errorf("numDays must be >= 1, got %d", numDays)
	}
	loc := ref.Location()
	start := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, numDays).Add(-time.Nanosecond)
	return models.NewTimePeriod(start, end)
}

// TimeOfDay is a wall-clock time with no date attached, for recurring daily
// triggers.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// String formats the time of day as HH:MM:SS, the shape the scheduler's At
// accepts.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// ParseDailyTimeOfDay parses an "HH:MM" or "HH:MM:SS" string as a local time
// of day in loc and returns the equivalent UTC time of day. The conversion
// anchors on today's date in loc (offsets depend on the date under DST) and
// then discards the date: when 23:30 local lands on 01:30 UTC the next day,
// the result is simply 01:30, since it feeds a recurring daily trigger.
func ParseDailyTimeOfDay(s string, loc *time.Location) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04:05", s)
	if err != nil {
		parsed, err = time.Parse("15:04", s)
	}
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}

	today := clock.Now().In(loc)
	local := time.Date(today.Year(), today.Month(), today.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(), 0, loc)
	utc := local.UTC()
	return TimeOfDay{Hour: utc.Hour(), Minute: utc.Minute(), Second: utc.Second()}, nil
}
