package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/mskaar/rain-alert-bot/internal/models"
)

var oslo = time.FixedZone("CEST", 2*3600)

func hour(t time.Time, symbol string, amount float64) models.RainyForecastHour {
	return models.RainyForecastHour{Time: t, SymbolCode: symbol, PrecipitationAmount: amount}
}

// TestBuildRainAlert verifies the rendered message: summary line, local hour
// formatting, amounts, and footer.
func TestBuildRainAlert(t *testing.T) {
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) // 12:00 in Oslo
	period := &models.RainyForecastPeriod{
		UpdatedAt:   time.Date(2026, 8, 29, 18, 30, 0, 0, time.UTC),
		Coordinates: models.Coordinates{Lat: 59.9139, Lon: 10.7522},
		Hours: []models.RainyForecastHour{
			hour(base, "lightrain", 0.4),
			hour(base.Add(time.Hour), "heavyrain", 3.0),
		},
	}

	msg := BuildRainAlert(period, "rain", oslo)

	if msg.Title != "Rain tomorrow! ☔" {
		t.Errorf("Title = %q", msg.Title)
	}
	if !strings.HasPrefix(msg.Body, "**Summary:** rain\n") {
		t.Errorf("Body missing summary line:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "**12:00** -  0.4 mm. lightrain 🌧\n") {
		t.Errorf("Body missing first hour line:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "**13:00** -  3 mm. heavyrain 🌧🌧🌧\n") {
		t.Errorf("Body missing second hour line:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Footer, "Location: (59.91, 10.75)") {
		t.Errorf("Footer = %q", msg.Footer)
	}
	if !strings.Contains(msg.Footer, "Updated: 2026-08-29 20:30:00") {
		t.Errorf("Footer update time = %q", msg.Footer)
	}
}

// TestBuildRainAlert_SeparatesShowers verifies non-consecutive rainy hours
// get a separator between them while consecutive ones do not.
func TestBuildRainAlert_SeparatesShowers(t *testing.T) {
	base := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	period := &models.RainyForecastPeriod{
		Coordinates: models.Coordinates{Lat: 59.9139, Lon: 10.7522},
		Hours: []models.RainyForecastHour{
			hour(base, "rain", 1.0),
			hour(base.Add(time.Hour), "rain", 1.2),
			hour(base.Add(6*time.Hour), "rain", 0.8), // second shower
		},
	}

	msg := BuildRainAlert(period, "rain", time.UTC)

	// One separator after the summary plus one between the showers.
	if got := strings.Count(msg.Body, separatorLine); got != 2 {
		t.Errorf("separator count = %d, want 2:\n%s", got, msg.Body)
	}
}

// TestFormatAmount verifies trailing zero trimming.
func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.4, "0.4"},
		{2, "2"},
		{2.5, "2.5"},
		{1.25, "1.25"},
		{0.1 + 0.2, "0.3"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestSymbolEmoji verifies intensity scaling and the fallbacks.
func TestSymbolEmoji(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"lightrain", "🌧"},
		{"rain", "🌧🌧"},
		{"heavyrain", "🌧🌧🌧"},
		{"partlycloudy_day", "☁"},
		{"rainshowers_day", "🚿"},
		{"sleet", "❓"},
	}
	for _, tt := range tests {
		if got := symbolEmoji(tt.code); got != tt.want {
			t.Errorf("symbolEmoji(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
