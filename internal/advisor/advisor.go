// Package advisor turns a risk profile and the live hazard records into the
// assistant's chat messages. Replies are templated; nothing here calls out.
package advisor

import (
	"fmt"
	"math"
	"strings"

	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/risk"
)

// Role identifies who wrote a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

const (
	// DefaultChatMessage opens every fresh transcript.
	DefaultChatMessage = "Answer the yes/no profile questions and I will generate personalized heat and fog route guidance."

	// WaitingInsight is shown when no route-level insight exists yet.
	WaitingInsight = "Waiting for live risk data to compute route-level recommendations."

	noRouteReply   = "I do not have enough live risk data to suggest a safer route yet."
	heatLoading    = "Heat risk data is still loading."
	fogLoading     = "Fog risk data is still loading."
	hotspotsListed = 2
)

// InitialTranscript returns a transcript holding only the opening message.
func InitialTranscript() []Message {
	return []Message{{Role: RoleAssistant, Text: DefaultChatMessage}}
}

// BuildInitialInsights returns the assistant messages shown when a profile is
// completed: a score summary, a detour when the data allows one, and a closing
// tip for the dominant hazard. It is empty while any answer is unknown.
func BuildInitialInsights(p risk.Profile, risks []feed.HazardRecord) []Message {
	if p.Unanswered {
		return []Message{}
	}

	dominant := risk.DominantHazard(p)
	advice, ok := risk.PickRouteAdvice(risks, dominant)

	messages := []Message{{
		Role: RoleAssistant,
		Text: fmt.Sprintf(
			"Profile complete. Your current personal risk is %s for heat (%d/100) and %s for fog (%d/100).",
			risk.Classify(p.HeatScore).Level, p.HeatScore,
			risk.Classify(p.FogScore).Level, p.FogScore,
		),
	}}

	if ok && advice.Alternate != nil {
		hazardName := "Heat"
		if dominant == risk.HazardFog {
			hazardName = "Fog"
		}
		messages = append(messages, Message{
			Role: RoleAssistant,
			Text: fmt.Sprintf(
				"Avoid %s right now. %s risk is %d, and %s. Prefer %s instead (combined risk %d).",
				advice.Avoid.Name,
				hazardName, round(dominant.Value(advice.Avoid)),
				p.PrimaryReason(),
				advice.Alternate.Name, round(advice.Alternate.CombinedRisk),
			),
		})
	}

	var closing string
	if dominant == risk.HazardHeat {
		closing = fmt.Sprintf(
			"Heat is your dominant concern at %d/100. Bring water and shorten direct sun exposure windows.",
			p.HeatScore,
		)
	} else {
		closing = fmt.Sprintf(
			"Fog is your dominant concern at %d/100. Favor routes with better sightlines and avoid sudden crossings.",
			p.FogScore,
		)
	}
	messages = append(messages, Message{Role: RoleAssistant, Text: closing})

	return messages
}

// GenerateAssistantReply answers a free-text prompt by keyword. Route
// questions win over heat, heat over fog; anything else gets the summary.
func GenerateAssistantReply(prompt string, p risk.Profile, risks []feed.HazardRecord) string {
	input := strings.ToLower(prompt)
	dominant := risk.DominantHazard(p)

	switch {
	case containsAny(input, "route", "intersection", "avoid"):
		advice, ok := risk.PickRouteAdvice(risks, dominant)
		if !ok || advice.Alternate == nil {
			return noRouteReply
		}
		return fmt.Sprintf(
			"Ignore %s for now (%s risk %d) and route via %s instead. This better matches your profile.",
			advice.Avoid.Name, dominant.Label(), round(dominant.Value(advice.Avoid)), advice.Alternate.Name,
		)

	case containsAny(input, "heat", "dehydrat", "water"):
		hot := risk.Hotspots(risks, risk.HazardHeat, hotspotsListed)
		if len(hot) == 0 {
			return heatLoading
		}
		return fmt.Sprintf(
			"Your heat risk profile is %s. Stay cautious near %s, where conditions are hottest right now.",
			risk.Classify(p.HeatScore).Level, joinNames(hot),
		)

	case containsAny(input, "fog", "visibility"):
		foggy := risk.Hotspots(risks, risk.HazardFog, hotspotsListed)
		if len(foggy) == 0 {
			return fogLoading
		}
		return fmt.Sprintf(
			"Your fog risk profile is %s. Avoid low-visibility areas around %s until conditions improve.",
			risk.Classify(p.FogScore).Level, joinNames(foggy),
		)
	}

	return fmt.Sprintf(
		"Current profile summary: heat %d/100, fog %d/100. Ask me for route, heat, or fog guidance and I will tailor it to your answers.",
		p.HeatScore, p.FogScore,
	)
}

// LatestInsight returns the newest assistant message other than the opening
// prompt, or WaitingInsight.
func LatestInsight(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == RoleAssistant && m.Text != DefaultChatMessage {
			return m.Text
		}
	}
	return WaitingInsight
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func joinNames(rs []feed.HazardRecord) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return strings.Join(names, " and ")
}

func round(v float64) int {
	return int(math.Round(v))
}
