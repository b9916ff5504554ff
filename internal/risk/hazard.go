package risk

import (
	"cmp"
	"slices"

	"github.com/microsafety/microsafety/internal/feed"
)

// Hazard selects one of the per-node hazard scores.
type Hazard string

const (
	HazardHeat Hazard = "heat_risk"
	HazardFog  Hazard = "fog_risk"
)

// Value returns the record's score for this hazard.
func (h Hazard) Value(r feed.HazardRecord) float64 {
	if h == HazardFog {
		return r.FogRisk
	}
	return r.HeatRisk
}

// Label is the short name used in messages.
func (h Hazard) Label() string {
	if h == HazardFog {
		return "fog"
	}
	return "heat"
}

// DominantHazard is heat unless the fog score is strictly higher.
func DominantHazard(p Profile) Hazard {
	if p.HeatScore >= p.FogScore {
		return HazardHeat
	}
	return HazardFog
}

// RouteAdvice names the record to avoid and, when one exists, a safer alternate.
type RouteAdvice struct {
	Avoid     feed.HazardRecord  `json:"avoid"`
	Alternate *feed.HazardRecord `json:"alternate,omitempty"`
}

// PickRouteAdvice returns the record with the highest hazard value and the
// lowest combined-risk alternate, preferring one in the same zone. Ties go to
// the record that appears first. ok is false when risks is empty.
func PickRouteAdvice(risks []feed.HazardRecord, h Hazard) (RouteAdvice, bool) {
	if len(risks) == 0 {
		return RouteAdvice{}, false
	}

	avoid := 0
	for i := range risks {
		if h.Value(risks[i]) > h.Value(risks[avoid]) {
			avoid = i
		}
	}

	sameZone, fallback := -1, -1
	for i := range risks {
		if risks[i].NodeID == risks[avoid].NodeID {
			continue
		}
		if fallback < 0 || risks[i].CombinedRisk < risks[fallback].CombinedRisk {
			fallback = i
		}
		if risks[i].Zone == risks[avoid].Zone &&
			(sameZone < 0 || risks[i].CombinedRisk < risks[sameZone].CombinedRisk) {
			sameZone = i
		}
	}

	advice := RouteAdvice{Avoid: risks[avoid]}
	switch {
	case sameZone >= 0:
		alt := risks[sameZone]
		advice.Alternate = &alt
	case fallback >= 0:
		alt := risks[fallback]
		advice.Alternate = &alt
	}
	return advice, true
}

// Hotspots returns up to n records with the highest value for h, in
// descending order. Ties keep input order.
func Hotspots(risks []feed.HazardRecord, h Hazard, n int) []feed.HazardRecord {
	return topBy(risks, n, h.Value)
}

// TopRisks returns up to n records with the highest combined risk.
func TopRisks(risks []feed.HazardRecord, n int) []feed.HazardRecord {
	return topBy(risks, n, func(r feed.HazardRecord) float64 { return r.CombinedRisk })
}

func topBy(risks []feed.HazardRecord, n int, key func(feed.HazardRecord) float64) []feed.HazardRecord {
	sorted := slices.Clone(risks)
	slices.SortStableFunc(sorted, func(a, b feed.HazardRecord) int {
		return cmp.Compare(key(b), key(a))
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []feed.HazardRecord{}
	}
	return sorted
}
