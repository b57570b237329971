package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/mskaar/rain-alert-bot/internal/models"
)

const (
	rainEmoji    = "🌧"
	cloudEmoji   = "☁"
	showerEmoji  = "🚿"
	unknownEmoji = "❓"
)

const separatorLine = "------------------------------------\n"

// BuildRainAlert renders a rainy-forecast period as a channel message. Hours
// are shown in loc; a separator is inserted wherever the rainy hours are not
// consecutive, so distinct showers read as distinct blocks.
func BuildRainAlert(period *models.RainyForecastPeriod, symbol string, loc *time.Location) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "**Summary:** %s\n", symbol)
	b.WriteString(separatorLine)

	var prev time.Time
	for _, hour := range period.Hours {
		if !prev.IsZero() && hour.Time.After(prev.Add(time.Hour)) {
			b.WriteString(separatorLine)
		}
		prev = hour.Time

		local := hour.Time.In(loc)
		fmt.Fprintf(&b, "**%s** -  %s mm. %s %s\n",
			local.Format("15:04"),
			formatAmount(hour.PrecipitationAmount),
			hour.SymbolCode,
			symbolEmoji(hour.SymbolCode))
	}

	updatedLocal := period.UpdatedAt.In(loc)
	footer := fmt.Sprintf("Location: (%.2f, %.2f)\nUpdated: %s",
		period.Coordinates.Lat, period.Coordinates.Lon,
		updatedLocal.Format("2006-01-02 15:04:05"))

	return Message{
		Title:  "Rain tomorrow! ☔",
		Body:   b.String(),
		Footer: footer,
	}
}

// formatAmount trims trailing zeros so "0.4" stays "0.4" and "2" is not
// "2.00".
func formatAmount(amount float64) string {
	s := strings.TrimRight(fmt.Sprintf("%.2f", amount), "0")
	return strings.TrimRight(s, ".")
}

// symbolEmoji maps a provider symbol code to the emoji used in alerts. Rain
// intensity scales the emoji count.
func symbolEmoji(code string) string {
	switch {
	case code == "lightrain":
		return rainEmoji
	case code == "rain":
		return strings.Repeat(rainEmoji, 2)
	case code == "heavyrain":
		return strings.Repeat(rainEmoji, 3)
	case strings.Contains(code, "cloud"):
		return cloudEmoji
	case strings.Contains(code, "shower"):
		return showerEmoji
	default:
		return unknownEmoji
	}
}
