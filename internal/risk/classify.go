package risk

import "github.com/microsafety/microsafety/internal/feed"

// Classification is the bucketed label and display color of a score.
type Classification struct {
	Level feed.RiskLevel `json:"level"`
	Color string         `json:"color"`
}

// Classify buckets a 0..100 score. Lower bounds are inclusive.
func Classify(score int) Classification {
	switch {
	case score >= 75:
		return Classification{Level: feed.RiskLevelExtreme, Color: "red"}
	case score >= 55:
		return Classification{Level: feed.RiskLevelHigh, Color: "orange"}
	case score >= 35:
		return Classification{Level: feed.RiskLevelModerate, Color: "yellow"}
	default:
		return Classification{Level: feed.RiskLevelLow, Color: "green"}
	}
}
