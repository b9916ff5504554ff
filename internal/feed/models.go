// Package feed provides the live snapshot feed: the data model pushed by the
// sensor network, the decode boundary that validates it, and the reconnecting
// client that keeps the latest snapshot available to observers.
package feed

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownScenario is returned for a preset name outside Scenarios().
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario is the named simulation preset the feed origin is running.
type Scenario string

const (
	ScenarioLive         Scenario = "live"
	ScenarioClearDay     Scenario = "clear_day"
	ScenarioMildHeat     Scenario = "mild_heat"
	ScenarioHeatWave     Scenario = "heat_wave"
	ScenarioLightFog     Scenario = "light_fog"
	ScenarioDenseTuleFog Scenario = "dense_tule_fog"
)

var scenarioDescriptions = map[Scenario]string{
	ScenarioLive:         "Real-time weather from the live observation provider",
	ScenarioClearDay:     "Normal conditions, everything green",
	ScenarioMildHeat:     "Warm day, scattered hot spots",
	ScenarioHeatWave:     "Extreme heat, no fog",
	ScenarioLightFog:     "Mild fog, cool temps",
	ScenarioDenseTuleFog: "Severe tule fog, patchy near-zero visibility",
}

// Scenarios returns every preset in display order.
func Scenarios() []Scenario {
	return []Scenario{
		ScenarioLive,
		ScenarioClearDay,
		ScenarioMildHeat,
		ScenarioHeatWave,
		ScenarioLightFog,
		ScenarioDenseTuleFog,
	}
}

// Valid reports whether s is a known preset.
func (s Scenario) Valid() bool {
	_, ok := scenarioDescriptions[s]
	return ok
}

// ParseScenario validates a preset name.
func ParseScenario(name string) (Scenario, error) {
	s := Scenario(name)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return s, nil
}

// Description returns the human-readable summary of the preset.
func (s Scenario) Description() string {
	return scenarioDescriptions[s]
}

// RiskLevel is the bucketed label attached to a hazard score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelModerate RiskLevel = "MODERATE"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelExtreme  RiskLevel = "EXTREME"
)

// Valid reports whether l is a known level.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLevelLow, RiskLevelModerate, RiskLevelHigh, RiskLevelExtreme:
		return true
	}
	return false
}

// Severity is the urgency of an alert.
type Severity string

const (
	SeverityAdvisory  Severity = "advisory"
	SeverityWarning   Severity = "warning"
	SeverityEmergency Severity = "emergency"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityAdvisory, SeverityWarning, SeverityEmergency:
		return true
	}
	return false
}

// AlertType is the hazard category of an alert.
type AlertType string

const (
	AlertTypeHeatAdvisory AlertType = "heat_advisory"
	AlertTypeHeatWarning  AlertType = "heat_warning"
	AlertTypeFogAdvisory  AlertType = "fog_advisory"
	AlertTypeFogWarning   AlertType = "fog_warning"
	AlertTypeFogEmergency AlertType = "fog_emergency"
)

// Sensor is a single sensor node reading.
type Sensor struct {
	NodeID       string    `json:"node_id"`
	Name         string    `json:"name,omitempty"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Zone         string    `json:"zone,omitempty"`
	TempF        float64   `json:"temp_f"`
	Humidity     float64   `json:"humidity,omitempty"`
	VisibilityFt float64   `json:"visibility_ft"`
	HeatIndexF   float64   `json:"heat_index_f,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitzero"`
}

// HazardRecord is the computed heat, fog and combined risk at one location.
// CombinedRisk is precomputed by the feed origin and never recomputed here.
type HazardRecord struct {
	NodeID              string    `json:"node_id"`
	Name                string    `json:"name"`
	Zone                string    `json:"zone"`
	Lat                 float64   `json:"lat"`
	Lng                 float64   `json:"lng"`
	HeatRisk            float64   `json:"heat_risk"`
	FogRisk             float64   `json:"fog_risk"`
	CombinedRisk        float64   `json:"combined_risk"`
	RiskLevel           RiskLevel `json:"risk_level"`
	ContributingFactors []string  `json:"contributing_factors"`
	TempF               float64   `json:"temp_f,omitempty"`
	VisibilityFt        float64   `json:"visibility_ft,omitempty"`
}

// Alert is a heat or fog alert raised for a location.
type Alert struct {
	ID         string     `json:"id"`
	NodeID     string     `json:"node_id,omitempty"`
	NodeName   string     `json:"node_name,omitempty"`
	AlertType  AlertType  `json:"alert_type,omitempty"`
	Severity   Severity   `json:"severity"`
	Message    string     `json:"message"`
	Active     bool       `json:"active"`
	Timestamp  time.Time  `json:"timestamp"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Atmospheric holds the area-wide boundary layer conditions.
type Atmospheric struct {
	WindSpeedMph         float64   `json:"wind_speed_mph"`
	WindDirection        string    `json:"wind_direction"`
	BoundaryLayerHeightM float64   `json:"boundary_layer_height_m"`
	DewPointDepressionF  float64   `json:"dew_point_depression_f"`
	FogProbability       float64   `json:"fog_probability"`
	InversionStrength    float64   `json:"inversion_strength"`
	Timestamp            time.Time `json:"timestamp,omitzero"`
}

// Snapshot is the full world state delivered by one feed push.
// Each snapshot replaces the previous one wholesale.
type Snapshot struct {
	Scenario    Scenario       `json:"scenario"`
	Tick        int64          `json:"tick"`
	Timestamp   time.Time      `json:"timestamp,omitzero"`
	Sensors     []Sensor       `json:"sensors"`
	Risks       []HazardRecord `json:"risks"`
	Alerts      []Alert        `json:"alerts"`
	Atmospheric *Atmospheric   `json:"atmospheric,omitempty"`
}

// Clone returns a deep copy so observers can never mutate shared state.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Sensors = append([]Sensor(nil), s.Sensors...)
	out.Risks = make([]HazardRecord, len(s.Risks))
	for i, r := range s.Risks {
		r.ContributingFactors = append([]string(nil), r.ContributingFactors...)
		out.Risks[i] = r
	}
	out.Alerts = make([]Alert, len(s.Alerts))
	for i, a := range s.Alerts {
		if a.ResolvedAt != nil {
			t := *a.ResolvedAt
			a.ResolvedAt = &t
		}
		out.Alerts[i] = a
	}
	if s.Atmospheric != nil {
		atm := *s.Atmospheric
		out.Atmospheric = &atm
	}
	return &out
}
