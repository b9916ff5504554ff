package risk

import (
	"math"

	"github.com/microsafety/microsafety/internal/feed"
)

const (
	baseScore      = 10
	personalWeight = 0.65
	liveWeight     = 0.35
	maxScore       = 100
)

// Profile is the personal risk derived from answers and the current hazard
// records. It is recomputed on every change and never stored.
type Profile struct {
	Unanswered   bool     `json:"unanswered"`
	Reasons      []string `json:"reasons"`
	PersonalHeat int      `json:"personal_heat"`
	PersonalFog  int      `json:"personal_fog"`
	HeatScore    int      `json:"heat_score"`
	FogScore     int      `json:"fog_score"`
}

// ComputeProfile blends the personal bases with the worst live hazard values.
// Empty risks count as zero live hazard.
func ComputeProfile(answers Answers, risks []feed.HazardRecord) Profile {
	p := Profile{Reasons: []string{}}

	heatBase, fogBase := baseScore, baseScore
	for _, q := range questions {
		switch answers[q.ID] {
		case AnswerYes:
			heatBase += q.HeatWeight
			fogBase += q.FogWeight
			p.Reasons = append(p.Reasons, q.Reason)
		case AnswerNo:
		default:
			p.Unanswered = true
		}
	}

	var maxHeat, maxFog float64
	for _, r := range risks {
		maxHeat = math.Max(maxHeat, r.HeatRisk)
		maxFog = math.Max(maxFog, r.FogRisk)
	}

	p.PersonalHeat = min(maxScore, heatBase)
	p.PersonalFog = min(maxScore, fogBase)
	p.HeatScore = blend(p.PersonalHeat, maxHeat)
	p.FogScore = blend(p.PersonalFog, maxFog)

	return p
}

func blend(personal int, live float64) int {
	return min(maxScore, int(math.Round(float64(personal)*personalWeight+live*liveWeight)))
}

// Score returns the score for one hazard.
func (p Profile) Score(h Hazard) int {
	if h == HazardFog {
		return p.FogScore
	}
	return p.HeatScore
}

// PrimaryReason is the first reported reason, or a generic phrase when the
// user answered no to everything.
func (p Profile) PrimaryReason() string {
	if len(p.Reasons) > 0 {
		return p.Reasons[0]
	}
	return "your self-reported sensitivity"
}
