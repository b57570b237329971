package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrLatitudeOutOfRange is returned when latitude is outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude out of range")

// ErrLongitudeOutOfRange is returned when longitude is outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude out of range")

// ErrInvalidWebhookURL is returned when a webhook URL is empty or not an
// absolute http(s) URL.
var ErrInvalidWebhookURL = errors.New("invalid webhook URL")

// ValidateCoordinates checks that lat/lon form a real point on the globe.
// The forecast provider answers garbage coordinates with errors much harder
// to diagnose than this one.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: %g", ErrLatitudeOutOfRange, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %g", ErrLongitudeOutOfRange, lon)
	}
	return nil
}

// ValidateWebhookURL checks that s is an absolute http(s) URL. The URL
// itself is a secret; errors never echo it back.
func ValidateWebhookURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidWebhookURL)
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: not an absolute URL", ErrInvalidWebhookURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidWebhookURL)
	}
	return nil
}
