// Package display formats live readings and maps risk values to the colors
// used by dashboards and the CLI.
package display

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/microsafety/microsafety/internal/feed"
)

const feetPerMile = 5280

// FormatTemp renders a Fahrenheit temperature rounded to whole degrees.
func FormatTemp(f float64) string {
	return fmt.Sprintf("%d°F", int(math.Round(f)))
}

// FormatVisibility renders distances of a mile or more in miles, shorter ones in feet.
func FormatVisibility(ft float64) string {
	if ft >= feetPerMile {
		return strconv.FormatFloat(ft/feetPerMile, 'f', 1, 64) + " mi"
	}
	return fmt.Sprintf("%d ft", int(math.Round(ft)))
}

// FormatTime renders the wall-clock time of t in its own location.
func FormatTime(t time.Time) string {
	return t.Format("15:04:05")
}

// FormatPercent renders a 0..1 probability as a percentage with one decimal.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 1, 64) + "%"
}

// Level colors.
const (
	ColorLow      = "#22c55e"
	ColorModerate = "#eab308"
	ColorHigh     = "#f97316"
	ColorExtreme  = "#ef4444"
	ColorUnknown  = "#6b7280"
	ColorInactive = "#4b5563"
)

// LevelColor maps a risk level to its hex color.
func LevelColor(level feed.RiskLevel) string {
	switch level {
	case feed.RiskLevelLow:
		return ColorLow
	case feed.RiskLevelModerate:
		return ColorModerate
	case feed.RiskLevelHigh:
		return ColorHigh
	case feed.RiskLevelExtreme:
		return ColorExtreme
	default:
		return ColorUnknown
	}
}

// ScoreColor buckets a 0..100 score into the four level colors.
func ScoreColor(score float64) string {
	switch {
	case score < 25:
		return ColorLow
	case score < 50:
		return ColorModerate
	case score < 75:
		return ColorHigh
	default:
		return ColorExtreme
	}
}

type gradientStop struct {
	at      float64
	r, g, b float64
}

var gradient = []gradientStop{
	{at: 0, r: 0x22, g: 0xc5, b: 0x5e},
	{at: 25, r: 0xea, g: 0xb3, b: 0x08},
	{at: 50, r: 0xf9, g: 0x73, b: 0x16},
	{at: 75, r: 0xef, g: 0x44, b: 0x44},
	{at: 100, r: 0x99, g: 0x1b, b: 0x1b},
}

// ScoreGradient interpolates a continuous color for a score, green at 0
// through dark red at 100. Out-of-range scores are clamped.
func ScoreGradient(score float64) string {
	s := math.Max(0, math.Min(100, score))

	lo, hi := gradient[0], gradient[len(gradient)-1]
	for i := 0; i < len(gradient)-1; i++ {
		if s >= gradient[i].at && s <= gradient[i+1].at {
			lo, hi = gradient[i], gradient[i+1]
			break
		}
	}

	var t float64
	if hi.at != lo.at {
		t = (s - lo.at) / (hi.at - lo.at)
	}

	lerp := func(a, b float64) int {
		return int(math.Round(a + (b-a)*t))
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", lerp(lo.r, hi.r), lerp(lo.g, hi.g), lerp(lo.b, hi.b))
}

// FogProbabilityColor names the bar color for an atmospheric fog probability.
func FogProbabilityColor(p float64) string {
	switch {
	case p > 0.7:
		return "red"
	case p > 0.4:
		return "yellow"
	default:
		return "green"
	}
}

// SeverityColor names the badge color of an alert severity.
func SeverityColor(s feed.Severity) string {
	switch s {
	case feed.SeverityAdvisory:
		return "yellow"
	case feed.SeverityWarning:
		return "orange"
	case feed.SeverityEmergency:
		return "red"
	default:
		return "gray"
	}
}

// AlertAccent is the hex accent for an alert row; resolved alerts are muted.
func AlertAccent(a feed.Alert) string {
	if !a.Active {
		return ColorInactive
	}
	switch a.Severity {
	case feed.SeverityEmergency:
		return ColorExtreme
	case feed.SeverityWarning:
		return ColorHigh
	default:
		return ColorModerate
	}
}
