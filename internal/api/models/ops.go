package models

import (
	"encoding/json"
	"time"

	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/provider/resilience"
)

// HealthStatus rolls feed and provider health into one word.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp encodes as RFC 3339 in UTC, dropping sub-second precision.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil || s == nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// Health is the liveness and readiness body.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus is the body of GET /v1/status.
type SystemStatus struct {
	Status    HealthStatus        `json:"status"`
	Time      Timestamp           `json:"time"`
	Version   string              `json:"version"`
	Feed      FeedStatus          `json:"feed"`
	Providers []resilience.Health `json:"providers"`
	Jobs      map[string]any      `json:"jobs,omitempty"`
	Flags     map[string]bool     `json:"flags,omitempty"`
}

// FeedStatus summarizes the live feed connection.
type FeedStatus struct {
	Transport string         `json:"transport,omitempty"`
	Connected bool           `json:"connected"`
	State     feed.ConnState `json:"state"`
	Scenario  feed.Scenario  `json:"scenario,omitempty"`
	Tick      *int64         `json:"tick,omitempty"`
}
