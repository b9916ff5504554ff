package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrDecode is the single error class for malformed feed payloads.
// Every decode or validation failure wraps it.
var ErrDecode = errors.New("malformed snapshot payload")

// ValidationError describes the first schema violation found in a payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrDecode.Error(), e.Field, e.Reason)
}

// Unwrap lets callers match the error with errors.Is(err, ErrDecode).
func (e *ValidationError) Unwrap() error {
	return ErrDecode
}

// Decode parses and validates a raw feed payload.
// A nil snapshot is returned with an error wrapping ErrDecode on any failure.
func Decode(payload []byte) (*Snapshot, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, &ValidationError{Field: "payload", Reason: "empty"}
	}
	if bytes.Equal(payload, []byte("null")) {
		return nil, &ValidationError{Field: "payload", Reason: "null"}
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := Validate(&snap); err != nil {
		return nil, err
	}

	return &snap, nil
}

// Validate checks a snapshot against the feed schema and normalizes absent
// collections to empty ones. A missing scenario defaults to clear_day.
func Validate(s *Snapshot) error {
	if s == nil {
		return &ValidationError{Field: "snapshot", Reason: "null"}
	}
	if s.Tick < 0 {
		return &ValidationError{Field: "tick", Reason: "must be >= 0"}
	}
	if s.Scenario == "" {
		s.Scenario = ScenarioClearDay
	}
	if !s.Scenario.Valid() {
		return &ValidationError{Field: "scenario", Reason: fmt.Sprintf("unknown preset %q", s.Scenario)}
	}

	if s.Sensors == nil {
		s.Sensors = []Sensor{}
	}
	if s.Risks == nil {
		s.Risks = []HazardRecord{}
	}
	if s.Alerts == nil {
		s.Alerts = []Alert{}
	}

	seen := make(map[string]struct{}, len(s.Sensors))
	for i := range s.Sensors {
		if err := validateSensor(i, &s.Sensors[i], seen); err != nil {
			return err
		}
	}

	seen = make(map[string]struct{}, len(s.Risks))
	for i := range s.Risks {
		if err := validateHazard(i, &s.Risks[i], seen); err != nil {
			return err
		}
	}

	seen = make(map[string]struct{}, len(s.Alerts))
	for i := range s.Alerts {
		if err := validateAlert(i, &s.Alerts[i], seen); err != nil {
			return err
		}
	}

	if s.Atmospheric != nil {
		p := s.Atmospheric.FogProbability
		if math.IsNaN(p) || p < 0 || p > 1 {
			return &ValidationError{Field: "atmospheric.fog_probability", Reason: "must be within [0,1]"}
		}
	}

	return nil
}

func validateSensor(i int, s *Sensor, seen map[string]struct{}) error {
	field := func(name string) string { return fmt.Sprintf("sensors[%d].%s", i, name) }

	if s.NodeID == "" {
		return &ValidationError{Field: field("node_id"), Reason: "required"}
	}
	if _, dup := seen[s.NodeID]; dup {
		return &ValidationError{Field: field("node_id"), Reason: fmt.Sprintf("duplicate %q", s.NodeID)}
	}
	seen[s.NodeID] = struct{}{}

	if s.Lat < -90 || s.Lat > 90 {
		return &ValidationError{Field: field("lat"), Reason: "out of range"}
	}
	if s.Lng < -180 || s.Lng > 180 {
		return &ValidationError{Field: field("lng"), Reason: "out of range"}
	}
	if s.VisibilityFt < 0 {
		return &ValidationError{Field: field("visibility_ft"), Reason: "must be >= 0"}
	}
	return nil
}

func validateHazard(i int, r *HazardRecord, seen map[string]struct{}) error {
	field := func(name string) string { return fmt.Sprintf("risks[%d].%s", i, name) }

	if r.NodeID == "" {
		return &ValidationError{Field: field("node_id"), Reason: "required"}
	}
	if _, dup := seen[r.NodeID]; dup {
		return &ValidationError{Field: field("node_id"), Reason: fmt.Sprintf("duplicate %q", r.NodeID)}
	}
	seen[r.NodeID] = struct{}{}

	scores := []struct {
		name  string
		value float64
	}{
		{"heat_risk", r.HeatRisk},
		{"fog_risk", r.FogRisk},
		{"combined_risk", r.CombinedRisk},
	}
	for _, sc := range scores {
		if math.IsNaN(sc.value) || sc.value < 0 || sc.value > 100 {
			return &ValidationError{Field: field(sc.name), Reason: "must be within [0,100]"}
		}
	}

	if !r.RiskLevel.Valid() {
		return &ValidationError{Field: field("risk_level"), Reason: fmt.Sprintf("unknown level %q", r.RiskLevel)}
	}
	if r.ContributingFactors == nil {
		r.ContributingFactors = []string{}
	}
	return nil
}

func validateAlert(i int, a *Alert, seen map[string]struct{}) error {
	field := func(name string) string { return fmt.Sprintf("alerts[%d].%s", i, name) }

	if a.ID == "" {
		return &ValidationError{Field: field("id"), Reason: "required"}
	}
	if _, dup := seen[a.ID]; dup {
		return &ValidationError{Field: field("id"), Reason: fmt.Sprintf("duplicate %q", a.ID)}
	}
	seen[a.ID] = struct{}{}

	if !a.Severity.Valid() {
		return &ValidationError{Field: field("severity"), Reason: fmt.Sprintf("unknown severity %q", a.Severity)}
	}
	if a.Timestamp.IsZero() {
		return &ValidationError{Field: field("timestamp"), Reason: "required"}
	}
	return nil
}
