package display

import (
	"fmt"

	"github.com/microsafety/microsafety/internal/feed"
)

// Banner is the emergency strip shown while any active warning or emergency
// alert exists.
type Banner struct {
	Text     string        `json:"text"`
	Severity feed.Severity `json:"severity"`
	Color    string        `json:"color"`
	Count    int           `json:"count"`
}

// EmergencyBanner builds the banner from the alert list. The first qualifying
// alert leads; the rest are summarized as a count. ok is false when nothing
// qualifies.
func EmergencyBanner(alerts []feed.Alert) (Banner, bool) {
	var urgent []feed.Alert
	for _, a := range alerts {
		if a.Active && (a.Severity == feed.SeverityEmergency || a.Severity == feed.SeverityWarning) {
			urgent = append(urgent, a)
		}
	}
	if len(urgent) == 0 {
		return Banner{}, false
	}

	lead := urgent[0]
	b := Banner{
		Text:     lead.Message,
		Severity: lead.Severity,
		Color:    "#ea580c",
		Count:    len(urgent),
	}
	if lead.Severity == feed.SeverityEmergency {
		b.Color = "#dc2626"
	}
	if more := len(urgent) - 1; more > 0 {
		b.Text = fmt.Sprintf("%s (+%d more intersections)", lead.Message, more)
	}
	return b, true
}
